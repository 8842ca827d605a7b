package repository

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"pocket-chat-server/internal/model"
)

// OrganizationRepository 组织数据访问层
// 负责组织与成员关系的数据库操作
type OrganizationRepository struct {
	db *gorm.DB
}

// NewOrganizationRepository 创建 OrganizationRepository 实例
func NewOrganizationRepository(db *gorm.DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

// EnsurePersonal 确保用户的个人组织存在
// 个人组织 ID 与用户 ID 相同；组织和 owner 成员关系都按主键 DO NOTHING 写入
// 参数:
//   - ctx: 上下文
//   - userID: 用户 ID
//   - name: 组织名称，仅在首次创建时生效
//
// 返回:
//   - error: 唯一约束冲突之外的数据库错误
func (r *OrganizationRepository) EnsurePersonal(ctx context.Context, userID, name string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		org := model.Organization{
			ID:       userID,
			Name:     name,
			Personal: true,
			OwnerID:  userID,
		}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).Create(&org).Error
		if err != nil && !IsDuplicateKey(err) {
			return errors.Wrap(err, "ensure personal organization")
		}

		return ensureMember(tx, userID, userID, model.MemberRoleOwner)
	})
}

// Create 创建组织并把创建者加为 owner
func (r *OrganizationRepository) Create(ctx context.Context, org *model.Organization) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(org).Error; err != nil {
			return errors.Wrap(err, "create organization")
		}
		return ensureMember(tx, org.ID, org.OwnerID, model.MemberRoleOwner)
	})
}

// ListByUserID 获取用户所属的所有组织
// 个人组织排在最前，其余按创建时间正序
func (r *OrganizationRepository) ListByUserID(ctx context.Context, userID string) ([]model.Organization, error) {
	var orgs []model.Organization
	err := r.db.WithContext(ctx).
		Joins("JOIN members ON members.organization_id = organizations.id").
		Where("members.user_id = ?", userID).
		Order("organizations.personal DESC, organizations.created_at ASC").
		Find(&orgs).Error
	if err != nil {
		return nil, errors.Wrap(err, "list organizations")
	}
	return orgs, nil
}

// GetMember 获取成员关系，不是成员时返回 nil
func (r *OrganizationRepository) GetMember(ctx context.Context, orgID, userID string) (*model.Member, error) {
	var member model.Member
	err := r.db.WithContext(ctx).
		Where("organization_id = ? AND user_id = ?", orgID, userID).
		First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "get member")
	}
	return &member, nil
}

func ensureMember(tx *gorm.DB, orgID, userID, role string) error {
	member := model.Member{
		OrganizationID: orgID,
		UserID:         userID,
		Role:           role,
	}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "organization_id"}, {Name: "user_id"}},
		DoNothing: true,
	}).Create(&member).Error
	if err != nil && !IsDuplicateKey(err) {
		return errors.Wrap(err, "ensure member")
	}
	return nil
}

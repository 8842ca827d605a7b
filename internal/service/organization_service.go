package service

import (
	"context"
	"errors"
	"strings"

	"github.com/samber/lo"

	"pocket-chat-server/internal/model"
	"pocket-chat-server/internal/repository"
	"pocket-chat-server/pkg/jwt"
	"pocket-chat-server/pkg/util"
)

// 组织相关错误
var (
	ErrOrganizationName = errors.New("组织名称不能为空")
	ErrNotMember        = errors.New("不是该组织的成员")
)

// PersonalOrganizationName 个人组织的默认名称
const PersonalOrganizationName = "Personal"

// OrganizationService 组织服务
// 处理组织的创建、列表以及当前组织的切换
type OrganizationService struct {
	orgRepo    *repository.OrganizationRepository // 组织数据访问层
	jwtService *jwt.JWTService                    // 切换组织后重新签发 Token
}

// NewOrganizationService 创建 OrganizationService 实例
func NewOrganizationService(orgRepo *repository.OrganizationRepository, jwtService *jwt.JWTService) *OrganizationService {
	return &OrganizationService{
		orgRepo:    orgRepo,
		jwtService: jwtService,
	}
}

// CreateOrganizationRequest 创建组织请求
type CreateOrganizationRequest struct {
	Name string `json:"name" binding:"required,max=100"`
}

// Create 创建组织，当前用户成为 owner
// 参数:
//   - ctx: 上下文
//   - ec: 执行上下文
//   - req: 创建请求
//
// 返回:
//   - *model.Organization: 新建的组织
//   - error: 操作错误
func (s *OrganizationService) Create(ctx context.Context, ec *ExecutionContext, req *CreateOrganizationRequest) (*model.Organization, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrOrganizationName
	}

	// 成员关系引用 users，先确保当前用户的记录存在
	if err := ec.Datastore.EnsureUser(ctx, ec.Email, ec.Name); err != nil {
		return nil, err
	}

	org := &model.Organization{
		ID:      util.NewID(),
		Name:    name,
		OwnerID: ec.UserID,
	}
	if err := s.orgRepo.Create(ctx, org); err != nil {
		return nil, err
	}
	return org, nil
}

// List 列出当前用户所属的组织
// 个人组织在首次聊天时才会落库，还不存在时补一条放在最前
func (s *OrganizationService) List(ctx context.Context, ec *ExecutionContext) ([]model.Organization, error) {
	orgs, err := s.orgRepo.ListByUserID(ctx, ec.UserID)
	if err != nil {
		return nil, err
	}

	hasPersonal := lo.ContainsBy(orgs, func(org model.Organization) bool {
		return org.ID == ec.UserID
	})
	if !hasPersonal {
		orgs = append([]model.Organization{{
			ID:       ec.UserID,
			Name:     PersonalOrganizationName,
			Personal: true,
			OwnerID:  ec.UserID,
		}}, orgs...)
	}
	return orgs, nil
}

// SwitchOrganizationRequest 切换当前组织请求
// OrganizationID 为空或等于用户 ID 表示回到个人模式
type SwitchOrganizationRequest struct {
	OrganizationID string `json:"organizationId"`
}

// SwitchOrganizationResponse 切换后的新 Token
type SwitchOrganizationResponse struct {
	AccessToken    string `json:"accessToken"`
	RefreshToken   string `json:"refreshToken"`
	ExpiresIn      int64  `json:"expiresIn"`
	OrganizationID string `json:"organizationId"`
}

// SwitchActive 切换当前组织
// 组织范围写在会话 Token 里，切换即重新签发 Token
// 参数:
//   - ctx: 上下文
//   - ec: 执行上下文
//   - req: 切换请求
//
// 返回:
//   - *SwitchOrganizationResponse: 新的 Token
//   - error: 不是该组织成员时返回 ErrNotMember
func (s *OrganizationService) SwitchActive(ctx context.Context, ec *ExecutionContext, req *SwitchOrganizationRequest) (*SwitchOrganizationResponse, error) {
	activeOrgID := req.OrganizationID
	if activeOrgID == ec.UserID {
		activeOrgID = ""
	}

	if activeOrgID != "" {
		member, err := s.orgRepo.GetMember(ctx, activeOrgID, ec.UserID)
		if err != nil {
			return nil, err
		}
		if member == nil {
			return nil, ErrNotMember
		}
	}

	accessToken, err := s.jwtService.GenerateAccessToken(ec.UserID, ec.Email, ec.Name, activeOrgID)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.jwtService.GenerateRefreshToken(ec.UserID, ec.Email, ec.Name, activeOrgID)
	if err != nil {
		return nil, err
	}

	return &SwitchOrganizationResponse{
		AccessToken:    accessToken,
		RefreshToken:   refreshToken,
		ExpiresIn:      int64(s.jwtService.GetAccessExpire().Seconds()),
		OrganizationID: lo.Ternary(activeOrgID == "", ec.UserID, activeOrgID),
	}, nil
}

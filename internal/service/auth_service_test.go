package service_test

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"pocket-chat-server/internal/model"
	"pocket-chat-server/internal/mylog"
	"pocket-chat-server/internal/mytesting"
	"pocket-chat-server/internal/repository"
	"pocket-chat-server/internal/service"
	"pocket-chat-server/pkg/jwt"
)

type AuthServiceTestSuite struct {
	mytesting.Suite

	jwtService *jwt.JWTService
	blacklist  *memoryBlacklist
	auth       *service.AuthService
	users      *service.UserService
	orgs       *service.OrganizationService
	access     *service.AccessService
}

func (s *AuthServiceTestSuite) SetupTest() {
	s.Suite.SetupTest()

	accountRepo := repository.NewAccountRepository(s.DB)
	orgRepo := repository.NewOrganizationRepository(s.DB)
	s.jwtService = newJWTService()
	s.blacklist = newMemoryBlacklist()
	s.auth = service.NewAuthService(accountRepo, orgRepo, s.blacklist, s.jwtService)
	s.users = service.NewUserService(accountRepo, repository.NewUserRepository(s.DB))
	s.orgs = service.NewOrganizationService(orgRepo, s.jwtService)
	s.access = service.NewAccessService(s.jwtService, repository.NewDatastore(s.DB, s.jwtService), s.blacklist, mylog.Discard())
}

func (s *AuthServiceTestSuite) login() *service.LoginResponse {
	_, err := s.auth.Register(s.Context, &service.RegisterRequest{Email: "Alice@Example.com", Password: "secret1"})
	s.Require().NoError(err)

	resp, err := s.auth.Login(s.Context, &service.LoginRequest{Email: "alice@example.com", Password: "secret1"})
	s.Require().NoError(err)
	return resp
}

func (s *AuthServiceTestSuite) authorize(token string) *service.ExecutionContext {
	ec, err := s.access.Authorize(s.Context, &service.RequestContext{SessionToken: token})
	s.Require().NoError(err)
	return ec
}

func (s *AuthServiceTestSuite) TestRegisterAndLogin() {
	resp := s.login()
	s.Equal("alice@example.com", resp.User.Email)
	s.Equal("alice", resp.User.Name)
	s.NotEmpty(resp.AccessToken)
	s.NotEmpty(resp.RefreshToken)
	s.EqualValues(3600, resp.ExpiresIn)

	_, err := s.auth.Register(s.Context, &service.RegisterRequest{Email: "alice@example.com", Password: "another"})
	s.ErrorIs(err, service.ErrEmailExists)

	_, err = s.auth.Login(s.Context, &service.LoginRequest{Email: "alice@example.com", Password: "wrong"})
	s.ErrorIs(err, service.ErrPasswordWrong)

	_, err = s.auth.Login(s.Context, &service.LoginRequest{Email: "bob@example.com", Password: "secret1"})
	s.ErrorIs(err, service.ErrAccountNotFound)
}

func (s *AuthServiceTestSuite) TestDisabledAccount() {
	resp := s.login()
	s.Require().NoError(s.DB.Model(&model.Account{}).Where("id = ?", resp.User.ID).
		Update("status", model.AccountStatusDisabled).Error)

	_, err := s.auth.Login(s.Context, &service.LoginRequest{Email: "alice@example.com", Password: "secret1"})
	s.ErrorIs(err, service.ErrAccountDisabled)

	_, err = s.auth.RefreshToken(s.Context, resp.RefreshToken)
	s.ErrorIs(err, service.ErrAccountDisabled)
}

func (s *AuthServiceTestSuite) TestLogout() {
	resp := s.login()
	ec := s.authorize(resp.AccessToken)

	// 登出前 Refresh Token 可以正常使用
	_, err := s.auth.RefreshToken(s.Context, resp.RefreshToken)
	s.Require().NoError(err)

	s.Require().NoError(s.auth.Logout(s.Context, ec, &service.LogoutRequest{RefreshToken: resp.RefreshToken}))

	_, err = s.access.Authorize(s.Context, &service.RequestContext{SessionToken: resp.AccessToken})
	s.ErrorIs(err, service.ErrUnauthorized)

	_, err = s.auth.RefreshToken(s.Context, resp.RefreshToken)
	s.ErrorIs(err, jwt.ErrInvalidToken)
}

func (s *AuthServiceTestSuite) TestLogoutIgnoresForeignRefreshToken() {
	resp := s.login()
	ec := s.authorize(resp.AccessToken)

	other, err := s.jwtService.GenerateRefreshToken("user-2", "b@example.com", "bob", "")
	s.Require().NoError(err)

	s.Require().NoError(s.auth.Logout(s.Context, ec, &service.LogoutRequest{RefreshToken: other}))
	s.Require().NoError(s.auth.Logout(s.Context, ec, nil))
	s.Len(s.blacklist.hashes, 1)
}

func (s *AuthServiceTestSuite) TestSwitchOrganization() {
	resp := s.login()
	ec := s.authorize(resp.AccessToken)

	org, err := s.orgs.Create(s.Context, ec, &service.CreateOrganizationRequest{Name: " Acme "})
	s.Require().NoError(err)
	s.Equal("Acme", org.Name)

	orgs, err := s.orgs.List(s.Context, ec)
	s.Require().NoError(err)
	s.Require().Len(orgs, 2)
	s.True(orgs[0].Personal)
	s.Equal(org.ID, orgs[1].ID)

	switched, err := s.orgs.SwitchActive(s.Context, ec, &service.SwitchOrganizationRequest{OrganizationID: org.ID})
	s.Require().NoError(err)
	s.Equal(org.ID, switched.OrganizationID)

	orgEC := s.authorize(switched.AccessToken)
	s.Equal(org.ID, orgEC.OrgScopeID)
	s.False(orgEC.Personal())

	// 刷新后保留当前组织
	refreshed, err := s.auth.RefreshToken(s.Context, switched.RefreshToken)
	s.Require().NoError(err)
	s.Equal(org.ID, s.authorize(refreshed.AccessToken).OrgScopeID)

	_, err = s.orgs.SwitchActive(s.Context, ec, &service.SwitchOrganizationRequest{OrganizationID: "other-org"})
	s.ErrorIs(err, service.ErrNotMember)

	personal, err := s.orgs.SwitchActive(s.Context, orgEC, &service.SwitchOrganizationRequest{})
	s.Require().NoError(err)
	s.Equal(ec.UserID, personal.OrganizationID)
	s.True(s.authorize(personal.AccessToken).Personal())
}

func (s *AuthServiceTestSuite) TestProfile() {
	resp := s.login()
	ec := s.authorize(resp.AccessToken)
	s.Require().NoError(ec.Datastore.EnsureUser(s.Context, ec.Email, ec.Name))

	name := "Alice Liddell"
	account, err := s.users.UpdateProfile(s.Context, ec.UserID, &service.UpdateProfileRequest{Name: &name})
	s.Require().NoError(err)
	s.Equal(name, account.Name)

	var user model.User
	s.Require().NoError(s.DB.Where("id = ?", ec.UserID).First(&user).Error)
	s.Equal(name, user.Name)

	s.ErrorIs(s.users.ChangePassword(s.Context, ec.UserID, &service.ChangePasswordRequest{
		OldPassword: "wrong", NewPassword: "secret2",
	}), service.ErrPasswordWrong)
	s.Require().NoError(s.users.ChangePassword(s.Context, ec.UserID, &service.ChangePasswordRequest{
		OldPassword: "secret1", NewPassword: "secret2",
	}))

	_, err = s.auth.Login(s.Context, &service.LoginRequest{Email: "alice@example.com", Password: "secret2"})
	s.Require().NoError(err)
}

func TestAuthService(t *testing.T) {
	suite.Run(t, new(AuthServiceTestSuite))
}

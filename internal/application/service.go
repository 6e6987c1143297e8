package application

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/LeL010/project2-spork-bootcamp/internal/domain/entity"
	"github.com/LeL010/project2-spork-bootcamp/internal/domain/identity"
	"github.com/LeL010/project2-spork-bootcamp/internal/domain/objectstore"
	repo "github.com/LeL010/project2-spork-bootcamp/internal/domain/repository"
	"github.com/LeL010/project2-spork-bootcamp/pkg/helpers"
	"github.com/LeL010/project2-spork-bootcamp/pkg/mailer"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
)

// Service carries the account flows: login/session plumbing plus the
// account-update orchestration. Redis, ES, and Pub are optional and
// nil-guarded; the core flow only needs Repo, Identity, and Objects.
type Service struct {
	Repo            repo.ProfileRepository
	Identity        identity.Provider
	Objects         objectstore.Store
	JWT             *helpers.JWTManager
	Redis           *redis.Client
	Logger          *logrus.Logger
	ES              *elasticsearch.Client
	ESProfilesIndex string
	Pub             *helpers.RabbitPublisher
}

func NewService(repo repo.ProfileRepository, provider identity.Provider, objects objectstore.Store, jwt *helpers.JWTManager, rdb *redis.Client, logger *logrus.Logger, es *elasticsearch.Client, esProfilesIndex string, pub *helpers.RabbitPublisher) *Service {
	return &Service{
		Repo:            repo,
		Identity:        provider,
		Objects:         objects,
		JWT:             jwt,
		Redis:           rdb,
		Logger:          logger,
		ES:              es,
		ESProfilesIndex: esProfilesIndex,
		Pub:             pub,
	}
}

type TokenPair struct {
	AccessToken        string
	AccessTokenExpiry  time.Time
	RefreshToken       string
	RefreshTokenExpiry time.Time
}

type LoginResponse struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

func sessionKey(userID string) string {
	return "user:session:" + userID
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// Authenticate verifies email/password against the identity provider and
// loads the matching profile without issuing tokens.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*entity.AccountProfile, error) {
	verified, err := s.Identity.VerifyCredential(ctx, email, password)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	p, err := s.Repo.GetByID(verified.UserID)
	if err != nil || p == nil {
		return nil, ErrInvalidCredentials
	}
	return p, nil
}

// IssueTokens generates access/refresh tokens and records a session in Redis.
func (s *Service) IssueTokens(ctx context.Context, p *entity.AccountProfile) (TokenPair, error) {
	sid := uuid.NewString()
	access, aexp, err := s.JWT.GenerateAccessToken(p.UserID, sid)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", p.UserID).Error("generate access token failed")
		}
		return TokenPair{}, err
	}
	refresh, rexp, err := s.JWT.GenerateRefreshToken(p.UserID, sid)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", p.UserID).Error("generate refresh token failed")
		}
		return TokenPair{}, err
	}

	if s.Redis != nil {
		fields := map[string]any{
			"user_id":    p.UserID,
			"email":      p.Email,
			"name":       p.DisplayName,
			"avatar_url": p.AvatarURL,
			"sid":        sid,
			"logged_in":  true,
			"created_at": nowRFC3339(),
		}
		key := sessionKey(p.UserID)
		pipe := s.Redis.Pipeline()
		pipe.HSet(ctx, key, fields)
		pipe.Expire(ctx, key, 24*time.Hour)
		if _, rErr := pipe.Exec(ctx); rErr != nil && s.Logger != nil {
			s.Logger.WithError(rErr).WithField("key", key).Warn("redis pipeline failed")
		}
	}

	return TokenPair{AccessToken: access, AccessTokenExpiry: aexp, RefreshToken: refresh, RefreshTokenExpiry: rexp}, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (*LoginResponse, TokenPair, error) {
	p, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return nil, TokenPair{}, err
	}
	pair, err := s.IssueTokens(ctx, p)
	if err != nil {
		return nil, TokenPair{}, err
	}
	resp := &LoginResponse{UserID: p.UserID, Email: p.Email, DisplayName: p.DisplayName}
	return resp, pair, nil
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, string, error) {
	claims, err := s.JWT.ParseRefreshToken(refreshToken)
	if err != nil {
		return TokenPair{}, "", ErrInvalidCredentials
	}
	p, err := s.Repo.GetByID(claims.UserID)
	if err != nil || p == nil {
		return TokenPair{}, "", ErrInvalidCredentials
	}
	// Validate current session id matches the token's sid
	if s.Redis != nil {
		key := sessionKey(p.UserID)
		data, rErr := s.Redis.HGetAll(ctx, key).Result()
		if rErr != nil || len(data) == 0 || data["sid"] != claims.SessionID {
			return TokenPair{}, "", ErrInvalidCredentials
		}
	}
	// Rotate session id and tokens
	sid := uuid.NewString()
	access, aexp, err := s.JWT.GenerateAccessToken(p.UserID, sid)
	if err != nil {
		return TokenPair{}, "", err
	}
	refresh, rexp, err := s.JWT.GenerateRefreshToken(p.UserID, sid)
	if err != nil {
		return TokenPair{}, "", err
	}
	if s.Redis != nil {
		key := sessionKey(p.UserID)
		pipe := s.Redis.Pipeline()
		pipe.HSet(ctx, key, map[string]any{
			"sid":        sid,
			"updated_at": nowRFC3339(),
		})
		pipe.Expire(ctx, key, 24*time.Hour)
		_, _ = pipe.Exec(ctx)
	}
	return TokenPair{AccessToken: access, AccessTokenExpiry: aexp, RefreshToken: refresh, RefreshTokenExpiry: rexp}, p.UserID, nil
}

func (s *Service) GetProfile(userID string) (*entity.AccountProfile, error) {
	p, err := s.Repo.GetByID(userID)
	if err != nil || p == nil {
		return nil, ErrUserNotFound
	}
	return p, nil
}

// refreshSessionCache pushes the freshly written profile fields into the
// Redis session hash, preserving the hash TTL.
func (s *Service) refreshSessionCache(ctx context.Context, p *entity.AccountProfile) {
	if s.Redis == nil {
		return
	}
	key := sessionKey(p.UserID)
	pipe := s.Redis.Pipeline()
	pipe.HSet(ctx, key, map[string]any{
		"name":       p.DisplayName,
		"email":      p.Email,
		"avatar_url": p.AvatarURL,
		"updated_at": nowRFC3339(),
	})
	if ttl, tErr := s.Redis.TTL(ctx, key).Result(); tErr == nil && ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	if _, pErr := pipe.Exec(ctx); pErr != nil && s.Logger != nil {
		s.Logger.WithError(pErr).WithField("key", key).Warn("redis pipeline failed")
	}
}

// indexProfile pushes the latest profile document to Elasticsearch so the
// social pages can look accounts up by name.
func (s *Service) indexProfile(ctx context.Context, p *entity.AccountProfile) error {
	if s.ES == nil || s.ESProfilesIndex == "" {
		return nil
	}
	doc := map[string]any{
		"user_id":      p.UserID,
		"email":        p.Email,
		"display_name": p.DisplayName,
		"avatar_url":   p.AvatarURL,
		"updated_at":   time.Now().UTC().Format(time.RFC3339Nano),
	}
	b, _ := json.Marshal(doc)
	req := esapi.IndexRequest{Index: s.ESProfilesIndex, DocumentID: p.UserID, Body: strings.NewReader(string(b)), Refresh: "false"}
	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := req.Do(c, s.ES)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", p.UserID).Warn("es index failed")
		}
		return err
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() && s.Logger != nil {
		s.Logger.WithField("status", res.Status()).WithField("user_id", p.UserID).Warn("es index response error")
	}
	return nil
}

// notifyProfileUpdated enqueues the profile-updated notification email.
// Best effort; a publish failure never affects the update outcome.
func (s *Service) notifyProfileUpdated(ctx context.Context, p *entity.AccountProfile) {
	if s.Pub == nil {
		return
	}
	job := mailer.EmailJob{
		To:       p.Email,
		Template: mailer.TemplateProfileUpdated,
		Data: map[string]any{
			"Name":  p.DisplayName,
			"Email": p.Email,
			"Time":  nowRFC3339(),
		},
	}
	if err := s.Pub.PublishJSON(ctx, job); err != nil && s.Logger != nil {
		s.Logger.WithError(err).WithField("user_id", p.UserID).Warn("failed to publish profile-updated email job")
	}
}

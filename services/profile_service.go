package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	log "github.com/sirupsen/logrus"
	"github.com/skip2/go-qrcode"

	"buildInPublicAPI/internal/apperr"
	"buildInPublicAPI/internal/types/user"
)

const userColumns = `u.id, COALESCE(u.clerk_id, ''), u.email, u.username, u.first_name, u.last_name,
	u.image_url, u.bio, u.website, u.github_username, u.twitter_handle,
	u.current_streak, u.longest_streak, u.last_activity_date, u.created_at, u.updated_at`

const summaryColumns = `u.id, u.username, u.first_name, u.last_name, u.image_url, u.current_streak`

func scanUser(row pgx.Row) (*user.User, error) {
	u := &user.User{}
	err := row.Scan(
		&u.ID,
		&u.ClerkID,
		&u.Email,
		&u.Username,
		&u.FirstName,
		&u.LastName,
		&u.ImageURL,
		&u.Bio,
		&u.Website,
		&u.GitHubUsername,
		&u.TwitterHandle,
		&u.CurrentStreak,
		&u.LongestStreak,
		&u.LastActivityDate,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	return u, err
}

func scanSummaries(rows pgx.Rows) ([]*user.Summary, error) {
	defer rows.Close()
	var out []*user.Summary
	for rows.Next() {
		s := &user.Summary{}
		if err := rows.Scan(&s.ID, &s.Username, &s.FirstName, &s.LastName, &s.ImageURL, &s.CurrentStreak); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// userWriteError maps unique violations on users to the user-facing conflicts.
func userWriteError(op string, err error) error {
	switch {
	case isUniqueViolation(err, "username"):
		return apperr.Conflict("Username is already taken")
	case isUniqueViolation(err, "email"):
		return apperr.Conflict("Email is already registered")
	case isUniqueViolation(err, "clerk_id"):
		return apperr.Conflict("Account already exists")
	}
	return dbError(op, err)
}

type ProfileService struct {
	db            DB
	identities    IdentityFetcher
	publicBaseURL string
}

func NewProfileService(db DB, identities IdentityFetcher, publicBaseURL string) *ProfileService {
	return &ProfileService{
		db:            db,
		identities:    identities,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

func (s *ProfileService) CreateUser(ctx context.Context, req *user.CreateUserRequest) (*user.User, error) {
	if err := apperr.ValidateStruct(req); err != nil {
		return nil, err
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO users AS u (id, clerk_id, email, username, first_name, last_name, image_url)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7)
		RETURNING `+userColumns,
		uuid.New().String(),
		req.ClerkID,
		strings.ToLower(req.Email),
		req.Username,
		req.FirstName,
		req.LastName,
		req.ImageURL,
	)

	u, err := scanUser(row)
	if err != nil {
		return nil, userWriteError("create user", err)
	}

	log.WithFields(log.Fields{"user_id": u.ID, "username": u.Username}).Info("profile: user created")
	return u, nil
}

func (s *ProfileService) getUser(ctx context.Context, where string, arg any) (*user.User, error) {
	u, err := scanUser(s.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users u WHERE `+where, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("User not found")
		}
		return nil, dbError("get user", err)
	}
	return u, nil
}

func (s *ProfileService) GetUserByClerkID(ctx context.Context, clerkID string) (*user.User, error) {
	return s.getUser(ctx, "u.clerk_id = $1", clerkID)
}

func (s *ProfileService) GetUserByID(ctx context.Context, id string) (*user.User, error) {
	return s.getUser(ctx, "u.id = $1", id)
}

func (s *ProfileService) GetUserByUsername(ctx context.Context, username string) (*user.User, error) {
	return s.getUser(ctx, "LOWER(u.username) = LOWER($1)", username)
}

// EnsureUser returns the local user for clerkID, provisioning it from the
// identity provider on first sight. A user created earlier from a sponsor
// payment with the same email is claimed instead of duplicated.
func (s *ProfileService) EnsureUser(ctx context.Context, clerkID string) (*user.User, error) {
	u, err := s.GetUserByClerkID(ctx, clerkID)
	if err == nil || !apperr.Is(err, apperr.CodeNotFound) {
		return u, err
	}

	identity, err := s.identities.FetchIdentity(ctx, clerkID)
	if err != nil {
		log.WithError(err).WithField("clerk_id", clerkID).Error("profile: identity lookup failed")
		return nil, apperr.Unauthorized("User not authenticated")
	}
	return s.provision(ctx, identity)
}

// SyncIdentity applies a user.created or user.updated event from the identity
// provider. Whichever of the webhook and the first authenticated request
// arrives first provisions the user; the other updates it.
func (s *ProfileService) SyncIdentity(ctx context.Context, identity *user.Identity) (*user.User, error) {
	_, err := s.GetUserByClerkID(ctx, identity.ClerkID)
	switch {
	case err == nil:
		return s.UpdateFromIdentity(ctx, identity)
	case apperr.Is(err, apperr.CodeNotFound):
		return s.provision(ctx, identity)
	default:
		return nil, err
	}
}

func (s *ProfileService) provision(ctx context.Context, identity *user.Identity) (*user.User, error) {
	if identity.Email == "" {
		return nil, apperr.Validation("Identity has no email address", map[string]string{"email": "is required"})
	}

	claimed, err := scanUser(s.db.QueryRow(ctx, `
		UPDATE users AS u
		SET clerk_id = $2, image_url = COALESCE(NULLIF($3, ''), u.image_url), updated_at = NOW()
		WHERE u.email = $1 AND u.clerk_id IS NULL
		RETURNING `+userColumns,
		strings.ToLower(identity.Email), identity.ClerkID, identity.ImageURL,
	))
	if err == nil {
		log.WithFields(log.Fields{"user_id": claimed.ID, "clerk_id": identity.ClerkID}).Info("profile: linked existing user to identity")
		return claimed, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, dbError("claim user", err)
	}

	username, err := uniqueUsername(ctx, s.db, usernameBase(identity.Username, identity.Email, identity.FirstName+identity.LastName))
	if err != nil {
		return nil, dbError("pick username", err)
	}

	return s.CreateUser(ctx, &user.CreateUserRequest{
		ClerkID:   identity.ClerkID,
		Email:     identity.Email,
		Username:  username,
		FirstName: identity.FirstName,
		LastName:  identity.LastName,
		ImageURL:  identity.ImageURL,
	})
}

// GetProfile loads username's public profile. viewerID may be empty.
func (s *ProfileService) GetProfile(ctx context.Context, username, viewerID string) (*user.Profile, error) {
	p := &user.Profile{User: &user.User{}}
	u := p.User
	err := s.db.QueryRow(ctx, `
		SELECT `+userColumns+`,
			(SELECT COUNT(*) FROM follows WHERE following_id = u.id),
			(SELECT COUNT(*) FROM follows WHERE follower_id = u.id),
			(SELECT COUNT(*) FROM posts WHERE user_id = u.id),
			EXISTS(SELECT 1 FROM follows WHERE follower_id = NULLIF($2, '')::uuid AND following_id = u.id)
		FROM users u
		WHERE LOWER(u.username) = LOWER($1)
	`, username, viewerID).Scan(
		&u.ID, &u.ClerkID, &u.Email, &u.Username, &u.FirstName, &u.LastName,
		&u.ImageURL, &u.Bio, &u.Website, &u.GitHubUsername, &u.TwitterHandle,
		&u.CurrentStreak, &u.LongestStreak, &u.LastActivityDate, &u.CreatedAt, &u.UpdatedAt,
		&p.FollowerCount,
		&p.FollowingCount,
		&p.PostCount,
		&p.IsFollowing,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("User not found")
		}
		return nil, dbError("get profile", err)
	}

	p.IsOwnProfile = viewerID != "" && viewerID == u.ID
	if !p.IsOwnProfile {
		u.Email = ""
		u.ClerkID = ""
	}
	return p, nil
}

// UpdateProfile applies the fields present in req.
func (s *ProfileService) UpdateProfile(ctx context.Context, userID string, req *user.UpdateProfileRequest) (*user.User, error) {
	if err := apperr.ValidateStruct(req); err != nil {
		return nil, err
	}

	var twitter *string
	if req.TwitterHandle != nil {
		handle := strings.TrimPrefix(*req.TwitterHandle, "@")
		twitter = &handle
	}

	u, err := scanUser(s.db.QueryRow(ctx, `
		UPDATE users AS u SET
			username = COALESCE($2, u.username),
			first_name = COALESCE($3, u.first_name),
			last_name = COALESCE($4, u.last_name),
			image_url = COALESCE($5, u.image_url),
			bio = COALESCE($6, u.bio),
			website = COALESCE($7, u.website),
			github_username = COALESCE($8, u.github_username),
			twitter_handle = COALESCE($9, u.twitter_handle),
			updated_at = NOW()
		WHERE u.id = $1
		RETURNING `+userColumns,
		userID,
		req.Username,
		req.FirstName,
		req.LastName,
		req.ImageURL,
		req.Bio,
		req.Website,
		req.GitHubUsername,
		twitter,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("User not found")
		}
		return nil, userWriteError("update profile", err)
	}
	return u, nil
}

// UpdateFromIdentity syncs provider-owned fields after a user.updated event.
// The local username is kept; it belongs to the user once chosen.
func (s *ProfileService) UpdateFromIdentity(ctx context.Context, identity *user.Identity) (*user.User, error) {
	u, err := scanUser(s.db.QueryRow(ctx, `
		UPDATE users AS u SET
			email = COALESCE(NULLIF($2, ''), u.email),
			first_name = $3,
			last_name = $4,
			image_url = COALESCE(NULLIF($5, ''), u.image_url),
			updated_at = NOW()
		WHERE u.clerk_id = $1
		RETURNING `+userColumns,
		identity.ClerkID,
		strings.ToLower(identity.Email),
		identity.FirstName,
		identity.LastName,
		identity.ImageURL,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("User not found")
		}
		return nil, userWriteError("update user from identity", err)
	}
	return u, nil
}

func (s *ProfileService) DeleteUserByClerkID(ctx context.Context, clerkID string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM users WHERE clerk_id = $1`, clerkID)
	if err != nil {
		return dbError("delete user", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("User not found")
	}
	log.WithField("clerk_id", clerkID).Info("profile: user deleted")
	return nil
}

// ListBuilders pages through builders, longest running streaks first.
func (s *ProfileService) ListBuilders(ctx context.Context, query string, page, pageSize int) (*user.BuilderPage, error) {
	if page < 1 {
		page = 1
	}
	pageSize = clampLimit(pageSize, 20, 100)

	pattern := ""
	if q := strings.TrimSpace(query); q != "" {
		pattern = "%" + strings.ToLower(q) + "%"
	}

	rows, err := s.db.Query(ctx, `
		SELECT `+summaryColumns+`
		FROM users u
		WHERE $1 = '' OR LOWER(u.username) LIKE $1 OR LOWER(u.first_name || ' ' || u.last_name) LIKE $1
		ORDER BY u.current_streak DESC, u.created_at DESC
		LIMIT $2 OFFSET $3
	`, pattern, pageSize+1, (page-1)*pageSize)
	if err != nil {
		return nil, dbError("list builders", err)
	}

	builders, err := scanSummaries(rows)
	if err != nil {
		return nil, dbError("scan builders", err)
	}

	result := &user.BuilderPage{Page: page, PageSize: pageSize, Builders: builders}
	if len(builders) > pageSize {
		result.HasMore = true
		result.Builders = builders[:pageSize]
	}
	if result.Builders == nil {
		result.Builders = []*user.Summary{}
	}
	return result, nil
}

// ProfileURL is the public address of username's profile page.
func (s *ProfileService) ProfileURL(username string) string {
	return fmt.Sprintf("%s/u/%s", s.publicBaseURL, username)
}

// ProfileQRCode renders a PNG QR code linking to the profile.
func (s *ProfileService) ProfileQRCode(ctx context.Context, username string, size int) ([]byte, error) {
	u, err := s.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if size < 128 || size > 1024 {
		size = 256
	}

	png, err := qrcode.Encode(s.ProfileURL(u.Username), qrcode.Medium, size)
	if err != nil {
		return nil, apperr.Unexpected("Failed to render QR code", err)
	}
	return png, nil
}

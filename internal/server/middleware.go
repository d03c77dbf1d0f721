package server

import (
	"errors"
	"math"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	obscontext "github.com/pattamap/pattamap-vip/internal/observability/context"
	"github.com/pattamap/pattamap-vip/pkg/telemetry/correlation"
)

const (
	HeaderCorrelationID = "X-Correlation-Id"
	contextUserIDKey    = "user_id"
	actorTypeUser       = "user"
)

var (
	errMissingBearer    = errors.New("missing bearer token")
	errSecretMissing    = errors.New("jwt secret not configured")
	errInvalidUserClaim = errors.New("token has no usable user id")
)

// CorrelationID propagates or mints the id that follows a request into
// background notification delivery.
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if incoming := strings.TrimSpace(c.GetHeader(HeaderCorrelationID)); incoming != "" {
			ctx = correlation.ContextWithCorrelationID(ctx, incoming)
		}
		ctx, id := correlation.EnsureCorrelationID(ctx)
		c.Request = c.Request.WithContext(ctx)
		c.Header(HeaderCorrelationID, id)
		c.Next()
	}
}

// AuthRequired accepts an HMAC signed bearer token whose uid (or sub) claim
// is the acting user's id.
func (s *Server) AuthRequired() gin.HandlerFunc {
	secret := []byte(strings.TrimSpace(s.cfg.AuthJWTSecret))
	return func(c *gin.Context) {
		userID, err := parseBearerUserID(c.GetHeader("Authorization"), secret)
		if err != nil {
			s.log.Debug("bearer authentication failed")
			AbortWithError(c, ErrUnauthorized)
			return
		}

		c.Set(contextUserIDKey, userID)
		ctx := obscontext.WithActor(c.Request.Context(), actorTypeUser, userID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func parseBearerUserID(header string, secret []byte) (snowflake.ID, error) {
	if len(secret) == 0 {
		return 0, errSecretMissing
	}
	header = strings.TrimSpace(header)
	if len(header) < 7 || !strings.EqualFold(header[:7], "Bearer ") {
		return 0, errMissingBearer
	}
	raw := strings.TrimSpace(header[7:])
	if raw == "" {
		return 0, errMissingBearer
	}

	token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
	if err != nil {
		return 0, err
	}
	if !token.Valid {
		return 0, errInvalidUserClaim
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, errInvalidUserClaim
	}
	return userIDFromClaims(claims)
}

func userIDFromClaims(claims jwt.MapClaims) (snowflake.ID, error) {
	var raw string
	switch uid := claims["uid"].(type) {
	case string:
		raw = uid
	case float64:
		// JSON numbers above 2^53 have already lost precision.
		if uid > 0 && uid < 1<<53 && uid == math.Trunc(uid) {
			return snowflake.ID(int64(uid)), nil
		}
	}
	if strings.TrimSpace(raw) == "" {
		sub, err := claims.GetSubject()
		if err != nil {
			return 0, errInvalidUserClaim
		}
		raw = sub
	}

	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id <= 0 {
		return 0, errInvalidUserClaim
	}
	return id, nil
}

func userIDFromContext(c *gin.Context) snowflake.ID {
	value, ok := c.Get(contextUserIDKey)
	if !ok {
		return 0
	}
	id, _ := value.(snowflake.ID)
	return id
}

package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gosuda/adbroker/internal/auth"
)

type TokenInput struct {
	Body struct {
		APIKey string `json:"api_key" minLength:"1" maxLength:"512" doc:"Raw API key"` //nolint:gosec // G117: credential DTO
	}
}

type TokenOutput struct {
	Body struct {
		AccessToken  string `json:"access_token"`  //nolint:gosec // G117: auth response DTO
		RefreshToken string `json:"refresh_token"` //nolint:gosec // G117: auth response DTO
	}
}

type RefreshInput struct {
	Body struct {
		RefreshToken string `json:"refresh_token" minLength:"1" doc:"Refresh token"` //nolint:gosec // G117: token refresh DTO
	}
}

type RefreshOutput struct {
	Body struct {
		AccessToken  string `json:"access_token"`  //nolint:gosec // G117: auth response DTO
		RefreshToken string `json:"refresh_token"` //nolint:gosec // G117: auth response DTO
	}
}

func RegisterAuthRoutes(api huma.API, authSvc AuthService) {
	huma.Register(api, huma.Operation{
		OperationID: "issue-token",
		Method:      http.MethodPost,
		Path:        "/auth/token",
		Summary:     "Exchange an API key for a JWT pair",
		Tags:        []string{"Auth"},
	}, func(ctx context.Context, input *TokenInput) (*TokenOutput, error) {
		principal, _, err := authSvc.ValidateAPIKey(ctx, input.Body.APIKey)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidAPIKey) {
				return nil, huma.Error401Unauthorized("invalid API key")
			}
			return nil, huma.Error500InternalServerError("failed to validate API key", err)
		}

		pair, err := authSvc.IssueTokens(principal.TenantID, principal.ID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to issue tokens", err)
		}

		out := &TokenOutput{}
		out.Body.AccessToken = pair.AccessToken
		out.Body.RefreshToken = pair.RefreshToken
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "refresh-token",
		Method:      http.MethodPost,
		Path:        "/auth/refresh",
		Summary:     "Refresh a JWT pair",
		Tags:        []string{"Auth"},
	}, func(_ context.Context, input *RefreshInput) (*RefreshOutput, error) {
		pair, err := authSvc.Refresh(input.Body.RefreshToken)
		if err != nil {
			return nil, huma.Error401Unauthorized("invalid or expired refresh token")
		}

		out := &RefreshOutput{}
		out.Body.AccessToken = pair.AccessToken
		out.Body.RefreshToken = pair.RefreshToken
		return out, nil
	})
}

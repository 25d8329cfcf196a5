package gcal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"

	"github.com/calmirror/calmirror/internal/log"
	"github.com/calmirror/calmirror/internal/store"
)

// TokenStore persists OAuth tokens per account. *store.SQLite satisfies it.
type TokenStore interface {
	SaveToken(ctx context.Context, account string, token []byte) error
	Token(ctx context.Context, account string) ([]byte, error)
}

func OAuthConfig(clientID, clientSecret string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  "urn:ietf:wg:oauth:2.0:oob",
		Scopes:       []string{calendar.CalendarScope},
	}
}

// TokenFromWeb walks the user through the out-of-band consent flow on the
// terminal.
func TokenFromWeb(ctx context.Context, config *oauth2.Config) (*oauth2.Token, error) {
	authURL := config.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Printf("Go to the following link in your browser then type the "+
		"authorization code: \n%v\n", authURL)

	var authCode string
	if _, err := fmt.Scan(&authCode); err != nil {
		return nil, fmt.Errorf("reading authorization code: %w", err)
	}

	tok, err := config.Exchange(ctx, authCode)
	if err != nil {
		return nil, fmt.Errorf("exchanging authorization code: %w", err)
	}
	return tok, nil
}

func saveToken(ctx context.Context, ts TokenStore, account string, token *oauth2.Token) error {
	raw, err := json.Marshal(token)
	if err != nil {
		return err
	}
	return ts.SaveToken(ctx, account, raw)
}

// HTTPClient returns an authenticated client for the account, obtaining a
// fresh token interactively when none is stored or the stored one was
// revoked, and persisting refreshed tokens.
func HTTPClient(ctx context.Context, config *oauth2.Config, ts TokenStore, account string) (*http.Client, error) {
	raw, err := ts.Token(ctx, account)
	if err == store.ErrNotFound {
		log.Infof("no token stored, starting consent flow", "account", account)
		token, err := TokenFromWeb(ctx, config)
		if err != nil {
			return nil, err
		}
		if err := saveToken(ctx, ts, account, token); err != nil {
			return nil, err
		}
		return config.Client(ctx, token), nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading token for account %s: %w", account, err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(raw, &token); err != nil {
		return nil, fmt.Errorf("unmarshaling token for account %s: %w", account, err)
	}

	newToken, err := config.TokenSource(ctx, &token).Token()
	if err != nil {
		if strings.Contains(err.Error(), "Token has been expired or revoked") {
			log.Infof("token expired or revoked, starting consent flow", "account", account)
			newToken, err = TokenFromWeb(ctx, config)
			if err != nil {
				return nil, err
			}
			if err := saveToken(ctx, ts, account, newToken); err != nil {
				return nil, err
			}
			return config.Client(ctx, newToken), nil
		}
		return nil, fmt.Errorf("refreshing token for account %s: %w", account, err)
	}

	if newToken.AccessToken != token.AccessToken {
		log.Debugf("token refreshed", "account", account)
		if err := saveToken(ctx, ts, account, newToken); err != nil {
			return nil, err
		}
	}

	return config.Client(ctx, newToken), nil
}

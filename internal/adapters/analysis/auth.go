package analysis

import (
	"context"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// ClientCredentials returns a cached token source for the OAuth2
// client-credentials grant, used when the service calls the analyzer on its
// own behalf.
func ClientCredentials(ctx context.Context, clientID, clientSecret, tokenURL string, scopes []string) oauth2.TokenSource {
	cfg := clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
		Scopes:       scopes,
	}
	return cfg.TokenSource(ctx)
}

package config

import (
	"strings"

	"google.golang.org/api/option"
)

// ClientOptions returns the credential options shared by the Pub/Sub and
// BigQuery clients. Inline JSON wins over a credentials file; with neither
// set the SDKs fall back to application default credentials.
func (g GCPConfig) ClientOptions() []option.ClientOption {
	switch {
	case strings.TrimSpace(g.CredentialsJSON) != "":
		return []option.ClientOption{option.WithCredentialsJSON([]byte(g.CredentialsJSON))}
	case strings.TrimSpace(g.ApplicationCredentials) != "":
		return []option.ClientOption{option.WithCredentialsFile(strings.TrimSpace(g.ApplicationCredentials))}
	}
	return nil
}

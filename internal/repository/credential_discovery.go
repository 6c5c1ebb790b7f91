package repository

import (
	"sort"
	"strings"
)

// Column name candidates for the credential relation. The relation is owned
// by another system, so the exact names vary per deployment.
var (
	clientIDCols   = []string{"client_id", "provider_client_id", "oauth_client_id"}
	secretCols     = []string{"client_secret", "provider_client_secret", "oauth_client_secret"}
	accountRefCols = []string{"account_id", "merchant_account_id"}
	providerCols   = []string{"provider", "provider_name"}
)

// credentialRelation is a discovered relation carrying per-account provider
// credentials, with the resolved column names.
type credentialRelation struct {
	Table         string
	ClientIDCol   string
	SecretCol     string
	AccountRefCol string
	ProviderCol   string // empty when the relation has no discriminator
}

// selectCredentialRelation picks the relation holding provider credentials
// from the introspected schema. A candidate must carry a client-id, a
// client-secret and an account-reference column. When several qualify, one
// with a provider discriminator wins; ties break on lexical table name.
func selectCredentialRelation(columnsByTable map[string][]string) (credentialRelation, bool) {
	names := make([]string, 0, len(columnsByTable))
	for name := range columnsByTable {
		names = append(names, name)
	}
	sort.Strings(names)

	var fallback *credentialRelation
	for _, name := range names {
		cols := toSet(columnsByTable[name])
		rel := credentialRelation{Table: name}
		if rel.ClientIDCol = pick(cols, clientIDCols); rel.ClientIDCol == "" {
			continue
		}
		if rel.SecretCol = pick(cols, secretCols); rel.SecretCol == "" {
			continue
		}
		if rel.AccountRefCol = pick(cols, accountRefCols); rel.AccountRefCol == "" {
			continue
		}
		rel.ProviderCol = pick(cols, providerCols)
		if rel.ProviderCol != "" {
			return rel, true
		}
		if fallback == nil {
			r := rel
			fallback = &r
		}
	}
	if fallback != nil {
		return *fallback, true
	}
	return credentialRelation{}, false
}

func toSet(cols []string) map[string]struct{} {
	set := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		set[strings.ToLower(c)] = struct{}{}
	}
	return set
}

func pick(set map[string]struct{}, candidates []string) string {
	for _, c := range candidates {
		if _, ok := set[c]; ok {
			return c
		}
	}
	return ""
}

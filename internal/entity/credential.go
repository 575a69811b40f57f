package entity

// CredentialInput is the per request part of a credential. Environment channels
// are supplied to the resolver through config.
type CredentialInput struct {
	Cookies            string
	CookiesFromBrowser string
}

// ResolvedCredential is a credential ready to be passed to the extractor.
// Release must be called exactly once when the request ends.
type ResolvedCredential struct {
	CookiesFile        string
	CookiesFromBrowser string
	Args               []string
	Release            func()
}

// NoCredential is a resolved credential with no cookies and a no-op release.
func NoCredential() *ResolvedCredential {
	return &ResolvedCredential{Release: func() {}}
}

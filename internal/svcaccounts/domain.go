package svcaccounts

// ServiceAccount is a non-interactive directory account used for
// system-to-system integration (DHCP, DNS, monitoring agents).
type ServiceAccount struct {
	DN              string   `json:"dn"`
	UID             string   `json:"uid"`
	CN              string   `json:"cn"`
	Mail            string   `json:"mail,omitempty"`
	Description     string   `json:"description,omitempty"`
	UIDNumber       int      `json:"uidNumber"`
	GIDNumber       int      `json:"gidNumber"`
	HomeDirectory   string   `json:"homeDirectory"`
	LoginShell      string   `json:"loginShell"`
	MemberOf        []string `json:"memberOf,omitempty"`
	CreateTimestamp string   `json:"createTimestamp,omitempty"`
	ModifyTimestamp string   `json:"modifyTimestamp,omitempty"`
}

// CreatedServiceAccount carries the account plus the generated secret.
// The secret is only ever returned from this one response.
type CreatedServiceAccount struct {
	ServiceAccount
	Secret string `json:"secret"`
}

// CreateParams are the inputs for creating a service account.
type CreateParams struct {
	UID         string
	CN          string
	Mail        string
	Description string
	UIDNumber   int
	GIDNumber   int
	LoginShell  string
}

// UpdateParams carries optional field updates. Nil means leave unchanged.
type UpdateParams struct {
	CN          *string
	Mail        *string
	Description *string
}

package users

// User is a person entry under the people OU.
type User struct {
	DN              string   `json:"dn"`
	UID             string   `json:"uid"`
	CN              string   `json:"cn"`
	Mail            string   `json:"mail,omitempty"`
	GivenName       string   `json:"givenName,omitempty"`
	SN              string   `json:"sn,omitempty"`
	Description     string   `json:"description,omitempty"`
	UIDNumber       int      `json:"uidNumber,omitempty"`
	GIDNumber       int      `json:"gidNumber,omitempty"`
	HomeDirectory   string   `json:"homeDirectory,omitempty"`
	LoginShell      string   `json:"loginShell,omitempty"`
	MemberOf        []string `json:"memberOf"`
	CreateTimestamp string   `json:"createTimestamp,omitempty"`
	ModifyTimestamp string   `json:"modifyTimestamp,omitempty"`
}

// CreateParams carries the attributes for a new user entry.
type CreateParams struct {
	UID           string
	CN            string
	Password      string
	Mail          string
	GivenName     string
	SN            string
	Description   string
	UIDNumber     int
	GIDNumber     int
	HomeDirectory string
	LoginShell    string
}

// UpdateParams carries optional attribute replacements. Nil means unchanged.
type UpdateParams struct {
	CN          *string
	Mail        *string
	GivenName   *string
	SN          *string
	Description *string
	LoginShell  *string
}

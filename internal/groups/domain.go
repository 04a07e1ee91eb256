package groups

// Group is a posixGroup entry under the groups OU.
type Group struct {
	DN              string   `json:"dn"`
	CN              string   `json:"cn"`
	Description     string   `json:"description,omitempty"`
	GIDNumber       int      `json:"gidNumber,omitempty"`
	MemberUID       []string `json:"memberUid"`
	CreateTimestamp string   `json:"createTimestamp,omitempty"`
	ModifyTimestamp string   `json:"modifyTimestamp,omitempty"`
}

// CreateParams carries the attributes for a new group entry.
type CreateParams struct {
	CN          string
	Description string
	GIDNumber   int
	MemberUID   []string
}

// UpdateParams carries optional replacements. Nil means unchanged.
type UpdateParams struct {
	Description *string
	MemberUID   *[]string
}

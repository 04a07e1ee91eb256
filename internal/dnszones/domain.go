package dnszones

// Zone is an idnsZone entry with its SOA attributes.
type Zone struct {
	DN              string `json:"dn"`
	Name            string `json:"idnsName"`
	SOASerial       int    `json:"idnsSOAserial"`
	SOARefresh      int    `json:"idnsSOArefresh"`
	SOARetry        int    `json:"idnsSOAretry"`
	SOAExpire       int    `json:"idnsSOAexpire"`
	SOAMinimum      int    `json:"idnsSOAminimum"`
	SOAMName        string `json:"idnsSOAmName"`
	SOARName        string `json:"idnsSOArName"`
	Description     string `json:"description,omitempty"`
	CreateTimestamp string `json:"createTimestamp,omitempty"`
	ModifyTimestamp string `json:"modifyTimestamp,omitempty"`
}

// Record is a single record value inside an idnsRecord entry. One entry can
// hold several values across several types; each value surfaces as its own
// Record.
type Record struct {
	DN              string `json:"dn"`
	Name            string `json:"idnsName"`
	Type            string `json:"record_type"`
	Value           string `json:"value"`
	CreateTimestamp string `json:"createTimestamp,omitempty"`
	ModifyTimestamp string `json:"modifyTimestamp,omitempty"`
}

// CreateZoneParams are the inputs for creating a zone. Zero SOA timers get
// BIND-conventional defaults.
type CreateZoneParams struct {
	Name        string
	SOASerial   int
	SOARefresh  int
	SOARetry    int
	SOAExpire   int
	SOAMinimum  int
	SOAMName    string
	SOARName    string
	Description string
}

// UpdateZoneParams carries optional SOA timer and description updates. Any
// update bumps the zone serial.
type UpdateZoneParams struct {
	Description *string
	SOARefresh  *int
	SOARetry    *int
	SOAExpire   *int
	SOAMinimum  *int
}

// CreateRecordParams are the inputs for adding a record value.
type CreateRecordParams struct {
	Name  string
	Type  string
	Value string
}

package dhcp

// Subnet is a dhcpSubnet entry under cn=config of the DHCP OU. The cn is
// the network address, dhcpNetMask the prefix length.
type Subnet struct {
	DN              string   `json:"dn"`
	CN              string   `json:"cn"`
	NetMask         int      `json:"dhcpNetMask"`
	Options         []string `json:"dhcpOption,omitempty"`
	Ranges          []string `json:"dhcpRange,omitempty"`
	Description     string   `json:"description,omitempty"`
	CreateTimestamp string   `json:"createTimestamp,omitempty"`
	ModifyTimestamp string   `json:"modifyTimestamp,omitempty"`
}

// Host is a dhcpHost reservation beneath a subnet. MACAddress and
// FixedAddress are parsed out of dhcpHWAddress and dhcpStatements.
type Host struct {
	DN              string   `json:"dn"`
	CN              string   `json:"cn"`
	HWAddress       string   `json:"dhcpHWAddress"`
	Statements      []string `json:"dhcpStatements,omitempty"`
	Options         []string `json:"dhcpOption,omitempty"`
	Description     string   `json:"description,omitempty"`
	MACAddress      string   `json:"mac_address,omitempty"`
	FixedAddress    string   `json:"ip_address,omitempty"`
	CreateTimestamp string   `json:"createTimestamp,omitempty"`
	ModifyTimestamp string   `json:"modifyTimestamp,omitempty"`
}

// Stats aggregates the DHCP configuration tree.
type Stats struct {
	TotalSubnets       int     `json:"total_subnets"`
	TotalStaticHosts   int     `json:"total_static_hosts"`
	TotalIPAddresses   int     `json:"total_ip_addresses"`
	AllocatedAddresses int     `json:"allocated_addresses"`
	AvailableAddresses int     `json:"available_addresses"`
	UtilizationPercent float64 `json:"utilization_percent"`
}

// CreateSubnetParams are the inputs for creating a subnet.
type CreateSubnetParams struct {
	CN          string
	NetMask     int
	Options     []string
	Ranges      []string
	Description string
}

// UpdateSubnetParams carries optional subnet updates. Nil means leave
// unchanged.
type UpdateSubnetParams struct {
	Options     *[]string
	Ranges      *[]string
	Description *string
}

// CreateHostParams are the inputs for creating a host reservation. MAC is
// the bare hardware address, FixedAddress the reserved IP.
type CreateHostParams struct {
	CN           string
	MAC          string
	FixedAddress string
	Options      []string
	Description  string
}

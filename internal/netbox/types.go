package netbox

// Wire types for the NetBox v4 REST API, trimmed to the fields this system
// consumes. List endpoints return a paginated envelope.

type envelope[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

type Ref struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug,omitempty"`
}

type Choice struct {
	Value string `json:"value"`
	Label string `json:"label,omitempty"`
}

// Family — prefix family choice; value is numeric (4 or 6).
type Family struct {
	Value int    `json:"value"`
	Label string `json:"label,omitempty"`
}

type Site struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	Slug            string `json:"slug"`
	Status          Choice `json:"status"`
	Description     string `json:"description,omitempty"`
	Facility        string `json:"facility,omitempty"`
	TimeZone        string `json:"time_zone,omitempty"`
	PhysicalAddress string `json:"physical_address,omitempty"`
}

type DeviceType struct {
	ID           int64   `json:"id"`
	Manufacturer Ref     `json:"manufacturer"`
	Model        string  `json:"model"`
	Slug         string  `json:"slug"`
	PartNumber   string  `json:"part_number,omitempty"`
	UHeight      float64 `json:"u_height,omitempty"`
	IsFullDepth  bool    `json:"is_full_depth,omitempty"`
}

type DeviceRole struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Color       string `json:"color,omitempty"`
	VMRole      bool   `json:"vm_role,omitempty"`
	Description string `json:"description,omitempty"`
}

type Prefix struct {
	ID          int64  `json:"id"`
	Prefix      string `json:"prefix"`
	Family      Family `json:"family"`
	Site        *Ref   `json:"site,omitempty"`
	VLAN        *VLAN  `json:"vlan,omitempty"`
	Status      Choice `json:"status"`
	Role        *Ref   `json:"role,omitempty"`
	IsPool      bool   `json:"is_pool,omitempty"`
	Description string `json:"description,omitempty"`
}

type VLAN struct {
	ID          int64  `json:"id"`
	VID         int    `json:"vid"`
	Name        string `json:"name"`
	Site        *Ref   `json:"site,omitempty"`
	Status      Choice `json:"status"`
	Role        *Ref   `json:"role,omitempty"`
	Description string `json:"description,omitempty"`
}

type DeviceTypeRef struct {
	ID    int64  `json:"id"`
	Model string `json:"model"`
}

type AddressRef struct {
	ID      int64  `json:"id"`
	Address string `json:"address"`
}

type Device struct {
	ID         int64          `json:"id"`
	Name       string         `json:"name"`
	DeviceType *DeviceTypeRef `json:"device_type,omitempty"`
	// v4 exposes "role"; older payloads still carry "device_role".
	Role       *Ref        `json:"role,omitempty"`
	DeviceRole *Ref        `json:"device_role,omitempty"`
	Site       *Ref        `json:"site,omitempty"`
	Status     Choice      `json:"status"`
	PrimaryIP4 *AddressRef `json:"primary_ip4,omitempty"`
	PrimaryIP6 *AddressRef `json:"primary_ip6,omitempty"`
	Serial     string      `json:"serial,omitempty"`
	AssetTag   string      `json:"asset_tag,omitempty"`
	Platform   *Ref        `json:"platform,omitempty"`
}

// RoleRef — role regardless of API generation.
func (d *Device) RoleRef() *Ref {
	if d.Role != nil {
		return d.Role
	}
	return d.DeviceRole
}

type Interface struct {
	ID      int64  `json:"id"`
	Device  *Ref   `json:"device,omitempty"`
	Name    string `json:"name"`
	Type    Choice `json:"type"`
	Enabled bool   `json:"enabled"`
}

type AssignedObject struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Device *Ref   `json:"device,omitempty"`
}

type Address struct {
	ID                 int64           `json:"id"`
	Address            string          `json:"address"`
	Status             Choice          `json:"status"`
	AssignedObjectType string          `json:"assigned_object_type,omitempty"`
	AssignedObjectID   *int64          `json:"assigned_object_id,omitempty"`
	AssignedObject     *AssignedObject `json:"assigned_object,omitempty"`
	DNSName            string          `json:"dns_name,omitempty"`
	Description        string          `json:"description,omitempty"`
}

type Cable struct {
	ID     int64  `json:"id"`
	Status Choice `json:"status"`
	Label  string `json:"label,omitempty"`
}

// ── write payloads ──────────────────────────────────────────

type DevicePayload struct {
	Name       string `json:"name"`
	DeviceType int64  `json:"device_type"`
	Role       int64  `json:"role"` // v4 uses "role", not "device_role"
	Site       int64  `json:"site"`
	Status     string `json:"status"`
}

type DevicePatch struct {
	PrimaryIP4 *int64 `json:"primary_ip4,omitempty"`
	Status     string `json:"status,omitempty"`
}

type InterfacePayload struct {
	Device       int64  `json:"device"`
	Name         string `json:"name"`
	Type         string `json:"type"`
	Enabled      bool   `json:"enabled"`
	UntaggedVLAN *int64 `json:"untagged_vlan,omitempty"`
	Mode         string `json:"mode,omitempty"`
}

type AddressPayload struct {
	Address            string `json:"address"`
	AssignedObjectType string `json:"assigned_object_type,omitempty"`
	AssignedObjectID   int64  `json:"assigned_object_id,omitempty"`
	Status             string `json:"status"`
}

type AddressPatch struct {
	AssignedObjectType string `json:"assigned_object_type,omitempty"`
	AssignedObjectID   int64  `json:"assigned_object_id,omitempty"`
	Status             string `json:"status,omitempty"`
}

type CableTermination struct {
	ObjectType string `json:"object_type"`
	ObjectID   int64  `json:"object_id"`
}

type CablePayload struct {
	ATerminations []CableTermination `json:"a_terminations"`
	BTerminations []CableTermination `json:"b_terminations"`
	Status        string             `json:"status,omitempty"`
	Label         string             `json:"label,omitempty"`
}

package deploy

import (
	"strconv"

	"archiflow/internal/ipam"
)

// RawDescriptor is the device record as the diagram parser hands it over:
// deployment fields may live either in the metadata bag or at top level,
// with the bag taking precedence.
type RawDescriptor struct {
	CellID     string         `json:"cell_id"`
	Name       string         `json:"name"`
	DeviceType string         `json:"device_type"`
	IPAddress  string         `json:"ip_address,omitempty"`
	VLANID     *int64         `json:"vlan_id,omitempty"`
	PoolID     *int64         `json:"pool_id,omitempty"`
	TemplateID *int64         `json:"template_id,omitempty"`
	X          float64        `json:"x,omitempty"`
	Y          float64        `json:"y,omitempty"`
	Width      float64        `json:"width,omitempty"`
	Height     float64        `json:"height,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Descriptor is the flat shape the orchestrator works with. The metadata-bag
// fallback is resolved here, once, so no call site ever needs it again.
type Descriptor struct {
	CellID     string
	Name       string
	DeviceType string
	IPAddress  string // normalized, no prefix-length suffix
	VLANID     *int64
	PoolID     *int64
	TemplateID *int64
	X, Y       float64
	Width      float64
	Height     float64
}

// Normalize collapses RawDescriptor into the flat Descriptor.
func (r RawDescriptor) Normalize() Descriptor {
	d := Descriptor{
		CellID:     r.CellID,
		Name:       r.Name,
		DeviceType: r.DeviceType,
		IPAddress:  r.IPAddress,
		VLANID:     r.VLANID,
		PoolID:     r.PoolID,
		TemplateID: r.TemplateID,
		X:          r.X,
		Y:          r.Y,
		Width:      r.Width,
		Height:     r.Height,
	}
	if v, ok := metaInt64(r.Metadata, "template_id"); ok {
		d.TemplateID = v
	}
	if v, ok := metaInt64(r.Metadata, "vlan_id"); ok {
		d.VLANID = v
	}
	if v, ok := metaInt64(r.Metadata, "pool_id"); ok {
		d.PoolID = v
	}
	if v, ok := metaString(r.Metadata, "ip_address"); ok {
		d.IPAddress = v
	}
	d.IPAddress = ipam.NormalizeAddress(d.IPAddress)
	return d
}

// metaInt64 reads a numeric field from the JSON bag; numbers arrive as
// float64, sometimes as strings.
func metaInt64(m map[string]any, key string) (*int64, bool) {
	raw, ok := m[key]
	if !ok || raw == nil {
		return nil, false
	}
	switch v := raw.(type) {
	case float64:
		n := int64(v)
		return &n, true
	case int64:
		return &v, true
	case int:
		n := int64(v)
		return &n, true
	case string:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return &n, true
		}
	}
	return nil, false
}

func metaString(m map[string]any, key string) (string, bool) {
	raw, ok := m[key]
	if !ok || raw == nil {
		return "", false
	}
	if s, ok := raw.(string); ok && s != "" {
		return s, true
	}
	return "", false
}

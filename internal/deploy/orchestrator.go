package deploy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"archiflow/internal/logs"
	"archiflow/internal/models"
	"archiflow/internal/netbox"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrMissingTemplate  = errors.New("device template_id is required but not present in descriptor")
	ErrNoRolesAvailable = errors.New("no device roles available in netbox")
)

// Registry — the slice of NetBox the orchestrator drives. Satisfied by
// *netbox.Client.
type Registry interface {
	ListDeviceRoles(ctx context.Context) ([]netbox.DeviceRole, error)
	CreateDevice(ctx context.Context, p netbox.DevicePayload) (*netbox.Device, error)
	UpdateDevice(ctx context.Context, id int64, patch netbox.DevicePatch) (*netbox.Device, error)
	GetDeviceByName(ctx context.Context, name string) (*netbox.Device, error)
	CreateInterface(ctx context.Context, p netbox.InterfacePayload) (*netbox.Interface, error)
	CreateAddress(ctx context.Context, p netbox.AddressPayload) (*netbox.Address, error)
	UpdateAddress(ctx context.Context, id int64, patch netbox.AddressPatch) (*netbox.Address, error)
	ListAddresses(ctx context.Context, filters url.Values) ([]netbox.Address, error)
}

// roleNameByType maps diagram device types onto NetBox role names.
var roleNameByType = map[string]string{
	"switch":        "Access Switch",
	"router":        "Router",
	"firewall":      "Firewall",
	"server":        "Server",
	"load_balancer": "Load Balancer",
	"access_point":  "Access Point",
}

const fallbackRoleName = "Network Device"

// Orchestrator materializes diagram devices as NetBox objects: role lookup,
// device create, Management interface, address assignment, primary IP,
// mapping persistence. Batch deployment isolates failures per device.
type Orchestrator struct {
	db *gorm.DB
	nb Registry

	mu        sync.Mutex
	roleCache map[string]netbox.DeviceRole // keyed by role name
}

func NewOrchestrator(db *gorm.DB, nb Registry) *Orchestrator {
	return &Orchestrator{db: db, nb: nb, roleCache: map[string]netbox.DeviceRole{}}
}

type DeviceResult struct {
	Success           bool     `json:"success"`
	DeviceName        string   `json:"device_name"`
	NetBoxDeviceID    *int64   `json:"netbox_device_id,omitempty"`
	NetBoxInterfaceID *int64   `json:"netbox_interface_id,omitempty"`
	NetBoxIPID        *int64   `json:"netbox_ip_id,omitempty"`
	Errors            []string `json:"errors,omitempty"`
}

type DiagramResult struct {
	Total     int            `json:"total"`
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
	Devices   []DeviceResult `json:"devices"`
}

// DeployDevice pushes one descriptor into NetBox. The returned result carries
// partial ids even on failure so the caller can see how far it got.
func (o *Orchestrator) DeployDevice(ctx context.Context, raw RawDescriptor, siteID int64, diagramID string) (*DeviceResult, error) {
	desc := raw.Normalize()
	result := &DeviceResult{DeviceName: desc.Name}

	if desc.TemplateID == nil {
		result.Errors = append(result.Errors, ErrMissingTemplate.Error())
		return result, ErrMissingTemplate
	}

	role, err := o.resolveRole(ctx, desc.DeviceType)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		return result, err
	}

	device, err := o.createDevice(ctx, netbox.DevicePayload{
		Name:       desc.Name,
		DeviceType: *desc.TemplateID,
		Role:       role.ID,
		Site:       siteID,
		Status:     "active",
	})
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		return result, err
	}
	result.NetBoxDeviceID = &device.ID

	if desc.IPAddress != "" {
		ifc, err := o.createManagementInterface(ctx, device.ID, desc.VLANID)
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			return result, err
		}
		result.NetBoxInterfaceID = &ifc.ID

		addr, err := o.assignAddress(ctx, desc.IPAddress, ifc.ID)
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			return result, err
		}
		result.NetBoxIPID = &addr.ID

		// Primary-address designation is cosmetic; its failure must not sink
		// the deployment.
		if _, err := o.nb.UpdateDevice(ctx, device.ID, netbox.DevicePatch{PrimaryIP4: &addr.ID}); err != nil {
			logs.Logger.Warnf("deploy: set primary ip for %s: %v", desc.Name, err)
		}
	}

	o.storeMapping(diagramID, raw, device.ID)

	result.Success = true
	logs.Logger.Infof("deploy: %s deployed (netbox id=%d)", desc.Name, device.ID)
	return result, nil
}

// DeployDiagram runs descriptors sequentially (NetBox rate limits, warm role
// cache); one device's failure is recorded and does not stop the rest.
func (o *Orchestrator) DeployDiagram(ctx context.Context, diagramID string, devices []RawDescriptor, siteID int64) (*DiagramResult, error) {
	summary := &DiagramResult{Total: len(devices), Devices: make([]DeviceResult, 0, len(devices))}

	for _, raw := range devices {
		res, err := o.DeployDevice(ctx, raw, siteID, diagramID)
		summary.Devices = append(summary.Devices, *res)
		if err != nil {
			summary.Failed++
			logs.Logger.Errorf("deploy: %s failed: %v", raw.Name, err)
			continue
		}
		summary.Succeeded++
	}

	if summary.Total > 0 && summary.Succeeded == summary.Total {
		if err := o.markDiagramDeployed(diagramID); err != nil {
			logs.Logger.Warnf("deploy: diagram %s status update: %v", diagramID, err)
		}
	}

	logs.Logger.Infof("deploy: diagram %s complete: %d/%d succeeded", diagramID, summary.Succeeded, summary.Total)
	return summary, nil
}

// resolveRole maps a device type to a NetBox role: in-process cache, then the
// reconciliation cache, then NetBox itself. An empty role catalog is a fatal
// configuration error.
func (o *Orchestrator) resolveRole(ctx context.Context, deviceType string) (netbox.DeviceRole, error) {
	name := roleNameByType[deviceType]
	if name == "" {
		name = fallbackRoleName
	}

	o.mu.Lock()
	cached, ok := o.roleCache[name]
	o.mu.Unlock()
	if ok {
		return cached, nil
	}

	// reconciliation cache first: no remote round-trip when sync is warm
	var row models.DeviceRole
	if err := o.db.Where("name = ?", name).First(&row).Error; err == nil {
		role := netbox.DeviceRole{ID: row.NetBoxID, Name: row.Name, Slug: row.Slug}
		o.cacheRole(role)
		return role, nil
	}

	roles, err := o.nb.ListDeviceRoles(ctx)
	if err != nil {
		return netbox.DeviceRole{}, err
	}
	for _, role := range roles {
		if role.Name == name {
			o.cacheRole(role)
			return role, nil
		}
	}
	if len(roles) > 0 {
		logs.Logger.Infof("deploy: role %q not found, using default %q", name, roles[0].Name)
		o.cacheRole(roles[0])
		return roles[0], nil
	}
	return netbox.DeviceRole{}, ErrNoRolesAvailable
}

func (o *Orchestrator) cacheRole(role netbox.DeviceRole) {
	o.mu.Lock()
	o.roleCache[role.Name] = role
	o.mu.Unlock()
}

// createDevice with the idempotent-create fallback: a name-uniqueness
// rejection means a prior (possibly partial) deploy already made the device,
// so fetch and reuse it.
func (o *Orchestrator) createDevice(ctx context.Context, p netbox.DevicePayload) (*netbox.Device, error) {
	device, err := o.nb.CreateDevice(ctx, p)
	if err == nil {
		return device, nil
	}
	var apiErr *netbox.APIError
	if errors.As(err, &apiErr) && apiErr.FieldError("name") {
		existing, lookupErr := o.nb.GetDeviceByName(ctx, p.Name)
		if lookupErr == nil && existing != nil {
			logs.Logger.Infof("deploy: device %s already exists (id=%d), reusing", existing.Name, existing.ID)
			return existing, nil
		}
	}
	return nil, err
}

func (o *Orchestrator) createManagementInterface(ctx context.Context, deviceID int64, vlanID *int64) (*netbox.Interface, error) {
	p := netbox.InterfacePayload{
		Device:  deviceID,
		Name:    "Management",
		Type:    "virtual",
		Enabled: true,
	}
	if vlanID != nil {
		p.UntaggedVLAN = vlanID
		p.Mode = "access" // single untagged VLAN
	}
	return o.nb.CreateInterface(ctx, p)
}

// assignAddress creates the /32 host route on the interface. A duplicate
// conflict means the address record already exists from an earlier run:
// find it and PATCH the assignment over instead of failing, so deploy stays
// safely re-runnable.
func (o *Orchestrator) assignAddress(ctx context.Context, address string, interfaceID int64) (*netbox.Address, error) {
	payload := netbox.AddressPayload{
		Address:            address + "/32",
		AssignedObjectType: "dcim.interface",
		AssignedObjectID:   interfaceID,
		Status:             "active",
	}
	addr, err := o.nb.CreateAddress(ctx, payload)
	if err == nil {
		return addr, nil
	}

	var apiErr *netbox.APIError
	if !errors.As(err, &apiErr) || !apiErr.DuplicateAddress() {
		return nil, err
	}

	params := url.Values{}
	params.Set("address", address)
	existing, listErr := o.nb.ListAddresses(ctx, params)
	if listErr != nil || len(existing) == 0 {
		return nil, err
	}
	logs.Logger.Infof("deploy: ip %s already exists (id=%d), reassigning", existing[0].Address, existing[0].ID)
	return o.nb.UpdateAddress(ctx, existing[0].ID, netbox.AddressPatch{
		AssignedObjectType: payload.AssignedObjectType,
		AssignedObjectID:   payload.AssignedObjectID,
		Status:             payload.Status,
	})
}

// storeMapping upserts the (diagram, device name) -> NetBox device row.
// Mapping is bookkeeping: failure is logged, not fatal.
func (o *Orchestrator) storeMapping(diagramID string, raw RawDescriptor, netboxDeviceID int64) {
	descriptorJSON, err := json.Marshal(raw)
	if err != nil {
		logs.Logger.Warnf("deploy: marshal descriptor %s: %v", raw.Name, err)
		descriptorJSON = []byte("{}")
	}
	row := models.NetBoxDeviceMapping{
		DiagramID:      diagramID,
		DeviceName:     raw.Name,
		DescriptorJSON: string(descriptorJSON),
		NetBoxDeviceID: netboxDeviceID,
		DeployedAt:     time.Now(),
	}
	err = o.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "diagram_id"}, {Name: "device_name"}},
		DoUpdates: clause.AssignmentColumns([]string{"descriptor_json", "netbox_device_id", "deployed_at", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		logs.Logger.Warnf("deploy: store mapping %s/%s: %v", diagramID, raw.Name, err)
	}
}

// draft → deployed; re-deploying just re-applies deployed.
func (o *Orchestrator) markDiagramDeployed(diagramID string) error {
	now := time.Now()
	res := o.db.Model(&models.Diagram{}).
		Where("id = ?", diagramID).
		Updates(map[string]any{"deployment_status": "deployed", "deployed_at": now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("diagram %s not found", diagramID)
	}
	return nil
}

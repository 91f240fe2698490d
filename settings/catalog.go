package settings

const (
	// SlotSize is the fixed number of bytes reserved for each setting,
	// terminator included.
	SlotSize = 128
	// MaxValueLen is the longest value a slot can hold.
	MaxValueLen = SlotSize - 1
)

// Slot order is the on-storage layout; never reorder, only append.
const (
	WifiHomeSSID          = "WIFI_HOME_SSID"
	WifiHomeKey           = "WIFI_HOME_KEY"
	WifiInverterSSID      = "WIFI_INVERTER_SSID"
	WifiInverterKey       = "WIFI_INVERTER_KEY"
	WifiRelaisSSID        = "WIFI_RELAIS_SSID"
	WifiRelaisKey         = "WIFI_RELAIS_KEY"
	MQTTBrokerHost        = "MQTT_BROKER_HOST"
	MQTTBrokerPort        = "MQTT_BROKER_PORT"
	MQTTBrokerUser        = "MQTT_BROKER_USER"
	MQTTBrokerPwd         = "MQTT_BROKER_PWD"
	MQTTBrokerMainTopic   = "MQTT_BROKER_MAINTOPIC"
	InverterWebAccessUser = "INVERTER_WEBACCESS_USER"
	InverterWebAccessPwd  = "INVERTER_WEBACCESS_PWD"
)

// Labels lists every setting in slot order.
var Labels = []string{
	WifiHomeSSID,
	WifiHomeKey,
	WifiInverterSSID,
	WifiInverterKey,
	WifiRelaisSSID,
	WifiRelaisKey,
	MQTTBrokerHost,
	MQTTBrokerPort,
	MQTTBrokerUser,
	MQTTBrokerPwd,
	MQTTBrokerMainTopic,
	InverterWebAccessUser,
	InverterWebAccessPwd,
}

// Entry describes where a setting lives and what it falls back to.
type Entry struct {
	Label   string
	Index   int
	Offset  int64
	Default string
}

// Catalog is the fixed label → slot table.
type Catalog struct {
	entries []Entry
	byLabel map[string]int
}

// NewCatalog builds a catalog over labels in the given order. Offsets are
// index × SlotSize. Labels missing from defaults get an empty default.
func NewCatalog(labels []string, defaults map[string]string) *Catalog {
	c := &Catalog{
		entries: make([]Entry, len(labels)),
		byLabel: make(map[string]int, len(labels)),
	}
	for i, label := range labels {
		c.entries[i] = Entry{
			Label:   label,
			Index:   i,
			Offset:  int64(i) * SlotSize,
			Default: defaults[label],
		}
		c.byLabel[label] = i
	}
	return c
}

// DefaultCatalog is the device catalog with build-time defaults, with any
// entries in overrides taking precedence. Unknown override labels are ignored.
func DefaultCatalog(overrides map[string]string) *Catalog {
	defaults := CompiledDefaults()
	for label, value := range overrides {
		if _, ok := defaults[label]; ok {
			defaults[label] = value
		}
	}
	return NewCatalog(Labels, defaults)
}

// Lookup resolves label to its entry.
func (c *Catalog) Lookup(label string) (Entry, bool) {
	i, ok := c.byLabel[label]
	if !ok {
		return Entry{}, false
	}
	return c.entries[i], true
}

// Entries returns the entries in slot order.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

func (c *Catalog) Len() int {
	return len(c.entries)
}

// RegionSize is the number of bytes the catalog occupies in storage.
func (c *Catalog) RegionSize() int {
	return len(c.entries) * SlotSize
}

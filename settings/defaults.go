package settings

// Factory defaults. Real credentials are injected at build time, e.g.
//
//	go build -ldflags "-X settings-portal/settings.defaultWifiHomeKey=hunter2"
var (
	defaultWifiHomeSSID          = "home"
	defaultWifiHomeKey           = "changeme"
	defaultWifiInverterSSID      = "AP_inverter"
	defaultWifiInverterKey       = "changeme"
	defaultWifiRelaisSSID        = "relais"
	defaultWifiRelaisKey         = "changeme"
	defaultMQTTBrokerHost        = "192.168.178.2"
	defaultMQTTBrokerPort        = "1883"
	defaultMQTTBrokerUser        = "mqtt"
	defaultMQTTBrokerPwd         = "changeme"
	defaultMQTTBrokerMainTopic   = "deye"
	defaultInverterWebAccessUser = "admin"
	defaultInverterWebAccessPwd  = "admin"
)

// CompiledDefaults returns a fresh map of the build-time defaults.
func CompiledDefaults() map[string]string {
	return map[string]string{
		WifiHomeSSID:          defaultWifiHomeSSID,
		WifiHomeKey:           defaultWifiHomeKey,
		WifiInverterSSID:      defaultWifiInverterSSID,
		WifiInverterKey:       defaultWifiInverterKey,
		WifiRelaisSSID:        defaultWifiRelaisSSID,
		WifiRelaisKey:         defaultWifiRelaisKey,
		MQTTBrokerHost:        defaultMQTTBrokerHost,
		MQTTBrokerPort:        defaultMQTTBrokerPort,
		MQTTBrokerUser:        defaultMQTTBrokerUser,
		MQTTBrokerPwd:         defaultMQTTBrokerPwd,
		MQTTBrokerMainTopic:   defaultMQTTBrokerMainTopic,
		InverterWebAccessUser: defaultInverterWebAccessUser,
		InverterWebAccessPwd:  defaultInverterWebAccessPwd,
	}
}

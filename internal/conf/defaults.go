// conf/defaults.go default values for settings
package conf

import (
	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "BirdNET-Array")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "birdnet-array.log")
	viper.SetDefault("main.log.maxsizemb", 100)
	viper.SetDefault("main.log.maxbackups", 3)
	viper.SetDefault("main.log.maxagedays", 28)

	viper.SetDefault("array.receivers", "receivers.yaml")
	viper.SetDefault("array.latitude", 0.000)
	viper.SetDefault("array.longitude", 0.000)
	viper.SetDefault("array.recordingstart", "")

	viper.SetDefault("localization.algorithm", "gillette")
	viper.SetDefault("localization.maxreceiverdist", 30.0)
	viper.SetDefault("localization.minreceivers", 3)
	viper.SetDefault("localization.ccthreshold", 0.0)
	viper.SetDefault("localization.ccfilter", "phat")
	viper.SetDefault("localization.maxdelay", 0.0)
	viper.SetDefault("localization.residualthreshold", 0.0)
	viper.SetDefault("localization.speedofsound", 343.0)
	viper.SetDefault("localization.temperature", 20.0)
	viper.SetDefault("localization.workers", 4)

	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.port", "8090")

	viper.SetDefault("output.file.enabled", true)
	viper.SetDefault("output.file.path", "output/")
	viper.SetDefault("output.file.formats", []string{"csv"})

	viper.SetDefault("output.file.upload.enabled", false)
	viper.SetDefault("output.file.upload.protocol", "sftp")
	viper.SetDefault("output.file.upload.port", 0)
	viper.SetDefault("output.file.upload.path", "uploads/")

	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "birdnet-array.db")

	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "birdnet")
	viper.SetDefault("output.mysql.password", "secret")
	viper.SetDefault("output.mysql.database", "birdnet")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", 3306)

	viper.SetDefault("output.mqtt.enabled", false)
	viper.SetDefault("output.mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("output.mqtt.topic", "birdnet-array/events")
	viper.SetDefault("output.mqtt.retain", false)

	viper.SetDefault("output.notification.enabled", false)
	viper.SetDefault("output.notification.urls", []string{})
	viper.SetDefault("output.notification.mininterval", 60)

	viper.SetDefault("sentry.enabled", false)
	viper.SetDefault("sentry.dsn", "")
}

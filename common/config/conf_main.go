package config

type MainRepoConfig struct {
	General     GeneralConfig     `yaml:"repo"`
	ObjectStore ObjectStoreConfig `yaml:"objectStore"`
	Orders      OrdersConfig      `yaml:"orders"`
	Zips        ZipsConfig        `yaml:"zips"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Sentry      SentryConfig      `yaml:"sentry"`
	SharedAuth  SharedAuthConfig  `yaml:"sharedSecretAuth"`
}

type GeneralConfig struct {
	BindAddress string `yaml:"bindAddress"`
	Port        int    `yaml:"port"`
	LogColors   bool   `yaml:"logColors"`
	JsonLogs    bool   `yaml:"jsonLogs"`
	LogLevel    string `yaml:"logLevel"`
	PublicBase  string `yaml:"publicBaseUrl"`
}

type ObjectStoreConfig struct {
	Endpoint     string `yaml:"endpoint"`
	Region       string `yaml:"region"`
	Bucket       string `yaml:"bucketName"`
	AccessKeyId  string `yaml:"accessKeyId"`
	AccessSecret string `yaml:"accessSecret"`
	Ssl          bool   `yaml:"ssl"`
	StorageClass string `yaml:"storageClass"`

	// Seconds a presigned download URL stays valid, and how long we cache
	// generated URLs in-process.
	PresignExpirySeconds int `yaml:"presignExpirySeconds"`
	PresignCacheSeconds  int `yaml:"presignCacheSeconds"`
}

type OrdersConfig struct {
	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint"` // optional override, for local testing
	AccessKeyId  string `yaml:"accessKeyId"`
	AccessSecret string `yaml:"accessSecret"`
	Table        string `yaml:"table"`
	AddonsTable  string `yaml:"addonsTable"`
}

type ZipsConfig struct {
	NumWorkers int `yaml:"numWorkers"`

	// Maximum wall-clock minutes a single build is allowed to run. A lock
	// older than this (plus a safety margin) is considered abandoned.
	BuildTimeoutMinutes int `yaml:"buildTimeoutMinutes"`
}

type MetricsConfig struct {
	Enabled     bool   `yaml:"enabled"`
	BindAddress string `yaml:"bindAddress"`
	Port        int    `yaml:"port"`
}

type SentryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Dsn         string `yaml:"dsn"`
	Environment string `yaml:"environment"`
	Debug       bool   `yaml:"debug"`
}

type SharedAuthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
}

func NewDefaultMainConfig() MainRepoConfig {
	return MainRepoConfig{
		General: GeneralConfig{
			BindAddress: "127.0.0.1",
			Port:        8000,
			LogColors:   false,
			JsonLogs:    false,
			LogLevel:    "info",
		},
		ObjectStore: ObjectStoreConfig{
			Endpoint:             "s3.amazonaws.com",
			Region:               "us-east-1",
			Bucket:               "gallery-media",
			Ssl:                  true,
			StorageClass:         "STANDARD",
			PresignExpirySeconds: 900,
			PresignCacheSeconds:  600,
		},
		Orders: OrdersConfig{
			Region:      "us-east-1",
			Table:       "gallery_orders",
			AddonsTable: "gallery_addons",
		},
		Zips: ZipsConfig{
			NumWorkers:          4,
			BuildTimeoutMinutes: 15,
		},
		Metrics: MetricsConfig{
			Enabled:     false,
			BindAddress: "localhost",
			Port:        9000,
		},
		Sentry: SentryConfig{
			Enabled: false,
		},
		SharedAuth: SharedAuthConfig{
			Enabled: false,
		},
	}
}

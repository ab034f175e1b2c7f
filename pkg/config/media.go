package config

import "fmt"

// MediaConfig selects and configures the image store backend.
type MediaConfig struct {
	// Driver is "disk" (default) or "s3".
	Driver string `koanf:"driver"`
	Disk   struct {
		// Dir is the directory uploaded files are written to.
		Dir string `koanf:"dir"`
		// PublicPrefix is the URL path files are served under.
		PublicPrefix string `koanf:"publicPrefix"`
	} `koanf:"disk"`
	S3 struct {
		Endpoint  string `koanf:"endpoint"`
		Bucket    string `koanf:"bucket"`
		AccessKey string `koanf:"accessKey"`
		SecretKey string `koanf:"secretKey"`
		UseSSL    bool   `koanf:"useSSL"`
	} `koanf:"s3"`
}

func (c *MediaConfig) Validate() error {
	switch c.Driver {
	case "", "disk":
		if c.Disk.Dir == "" {
			c.Disk.Dir = "uploads"
		}
		if c.Disk.PublicPrefix == "" {
			c.Disk.PublicPrefix = "/uploads"
		}
		return nil
	case "s3":
		if c.S3.Endpoint == "" || c.S3.Bucket == "" {
			return fmt.Errorf("s3 media driver requires endpoint and bucket")
		}
		return nil
	}
	return fmt.Errorf("unknown media driver: %s", c.Driver)
}

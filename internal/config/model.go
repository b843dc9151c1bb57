// internal/config/model.go
//
// Typed configuration model for the openSIS deployment.
//
// Context
// -------
// `Snapshot` is the flat record that `Resolve()` builds from four overlay
// layers (highest precedence last):
//
//   • compiled-in defaults                 – `Defaults()`,
//   • optional `conf/opensis.yaml`         – any field,
//   • `OPENSIS_`-prefixed environment vars – any field,
//   • `DB_HOST`, `DB_PORT`, `DB_NAME`, `DB_USER`, `DB_PASSWORD`.
//
// Every field has a default, so resolution never fails for lack of an
// override.  The snapshot holds no pointers, maps, or slices; a copy is a
// fully independent read-only value.
//
// Notes
// -----
//   • Dotted names (`database.port`) are the canonical field names used in
//     YAML keys, env mapping, and error messages.
//   • `yaml` tags drive both `sisconf show` output and validator field names.
//   • Oxford commas, two spaces after periods.  No em-dash.

package config

import "time"

//
// Database section
//

// Database holds connection parameters for the SIS database.
type Database struct {
	Type           string `yaml:"type"`
	Host           string `yaml:"host"           validate:"required"`
	Port           int    `yaml:"port"           validate:"min=1,max=65535"`
	Name           string `yaml:"name"           validate:"required"`
	User           string `yaml:"user"           validate:"required"`
	Password       string `yaml:"password"`
	Encoding       string `yaml:"encoding"       validate:"required"`
	TimeoutSeconds int    `yaml:"timeoutSeconds" validate:"min=0"`
	Persistent     bool   `yaml:"persistent"`
	SSL            bool   `yaml:"ssl"`
}

//
// School section
//

// School holds academic defaults.
type School struct {
	DefaultYear int `yaml:"defaultYear" validate:"min=1"`
}

//
// App section
//

// App holds filesystem and URL locations.  BasePath is runtime only.
type App struct {
	Timezone string `yaml:"timezone" validate:"required"`
	BasePath string `yaml:"basePath"`
	BaseURL  string `yaml:"baseUrl"  validate:"required,url"`
}

//
// Uploads section
//

// Uploads holds paths, relative to App.BasePath, for stored pictures.
type Uploads struct {
	StudentPicturesPath string `yaml:"studentPicturesPath"`
	UserPicturesPath    string `yaml:"userPicturesPath"`
}

//
// Security section
//

// Security holds password policy.
type Security struct {
	PasswordMinLength          int  `yaml:"passwordMinLength" validate:"min=1"`
	PasswordComplexityRequired bool `yaml:"passwordComplexityRequired"`
}

//
// Email section
//

// Email holds outbound mail settings.  An empty Server means mail is not
// configured.
type Email struct {
	Server   string `yaml:"server"`
	Port     int    `yaml:"port"     validate:"min=0,max=65535"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSL      bool   `yaml:"ssl"`
}

//
// Root aggregate
//

// Snapshot is the immutable aggregate returned by Resolve().
type Snapshot struct {
	Database  Database `yaml:"database"`
	School    School   `yaml:"school"`
	App       App      `yaml:"app"`
	Uploads   Uploads  `yaml:"uploads"`
	Security  Security `yaml:"security"`
	Email     Email    `yaml:"email"`
	DebugMode bool     `yaml:"debugMode"`
}

// Defaults returns the compiled-in snapshot.  DefaultYear is the UTC
// calendar year of now, and BasePath is root with a trailing slash.
func Defaults(now time.Time, root string) Snapshot {
	return Snapshot{
		Database: Database{
			Type:           "mysqli",
			Host:           "opensis-db",
			Port:           3306,
			Name:           "opensis",
			User:           "opensis_user",
			Password:       "opensis_pass",
			Encoding:       "utf8",
			TimeoutSeconds: 30,
			Persistent:     false,
			SSL:            false,
		},
		School: School{DefaultYear: now.UTC().Year()},
		App: App{
			Timezone: "UTC",
			BasePath: withSlash(root),
			BaseURL:  "http://localhost:8080/",
		},
		Uploads: Uploads{
			StudentPicturesPath: "assets/studentphotos/",
			UserPicturesPath:    "assets/userphotos/",
		},
		Security: Security{
			PasswordMinLength:          6,
			PasswordComplexityRequired: false,
		},
		Email: Email{
			Port: 587,
			SSL:  true,
		},
		DebugMode: true,
	}
}

const redacted = "********"

// Redacted returns a copy with passwords masked, for printing and logs.
func (s Snapshot) Redacted() Snapshot {
	if s.Database.Password != "" {
		s.Database.Password = redacted
	}
	if s.Email.Password != "" {
		s.Email.Password = redacted
	}
	return s
}

// Location loads App.Timezone.
func (s Snapshot) Location() (*time.Location, error) {
	return time.LoadLocation(s.App.Timezone)
}

func withSlash(dir string) string {
	if dir == "" || dir[len(dir)-1] == '/' {
		return dir
	}
	return dir + "/"
}

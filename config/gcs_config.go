package config

import (
	"github.com/pkg/errors"
	"github.com/tkanos/gonfig"
)

// GCSConfig mirrors the service account JSON used for uploads and URL signing.
type GCSConfig struct {
	Project_Id   string `json:"project_id"`
	Private_Key  string `json:"private_key"`
	Client_Email string `json:"client_email"`
	Client_ID    string `json:"client_id"`
	Auth_URI     string `json:"auth_uri"`
	Token_URI    string `json:"token_uri"`

	// Path the file was loaded from, handed to the storage client as a credentials file.
	Credentials_File string `json:"-"`
}

func LoadGCSConfig(dir, env string) (GCSConfig, error) {
	var gcsConfig GCSConfig

	name := fileName(dir, "gcs", env)
	err := gonfig.GetConf(name, &gcsConfig)
	if err != nil {
		return gcsConfig, errors.Wrap(err, "load gcs config")
	}
	if gcsConfig.Client_Email == "" || gcsConfig.Private_Key == "" {
		return gcsConfig, errors.New("gcs config requires client_email and private_key")
	}
	gcsConfig.Credentials_File = name
	return gcsConfig, nil
}

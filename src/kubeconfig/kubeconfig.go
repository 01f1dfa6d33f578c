package kubeconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"eks-backup/src/awsapi"
)

// File is a kubeconfig document, built as typed structures and serialized
// through the YAML encoder rather than string templating.
type File struct {
	APIVersion     string         `yaml:"apiVersion"`
	Kind           string         `yaml:"kind"`
	Clusters       []NamedCluster `yaml:"clusters"`
	Contexts       []NamedContext `yaml:"contexts"`
	CurrentContext string         `yaml:"current-context"`
	Users          []NamedUser    `yaml:"users"`
}

type NamedCluster struct {
	Name    string       `yaml:"name"`
	Cluster ClusterEntry `yaml:"cluster"`
}

type ClusterEntry struct {
	Server                   string `yaml:"server"`
	CertificateAuthorityData string `yaml:"certificate-authority-data"`
}

type NamedContext struct {
	Name    string       `yaml:"name"`
	Context ContextEntry `yaml:"context"`
}

type ContextEntry struct {
	Cluster string `yaml:"cluster"`
	User    string `yaml:"user"`
}

type NamedUser struct {
	Name string    `yaml:"name"`
	User UserEntry `yaml:"user"`
}

type UserEntry struct {
	Exec ExecConfig `yaml:"exec"`
}

// ExecConfig authenticates via the AWS CLI token helper, so the kubeconfig
// carries no static credentials.
type ExecConfig struct {
	APIVersion string   `yaml:"apiVersion"`
	Command    string   `yaml:"command"`
	Args       []string `yaml:"args"`
}

// Build renders a kubeconfig for the cluster. The context is named
// eks_<region>_<name> so configs for several restore targets can merge.
func Build(cluster awsapi.Cluster, region string) *File {
	name := fmt.Sprintf("eks_%s_%s", region, cluster.Name)
	return &File{
		APIVersion: "v1",
		Kind:       "Config",
		Clusters: []NamedCluster{{
			Name: name,
			Cluster: ClusterEntry{
				Server:                   cluster.Endpoint,
				CertificateAuthorityData: cluster.CertificateAuthority,
			},
		}},
		Contexts: []NamedContext{{
			Name:    name,
			Context: ContextEntry{Cluster: name, User: name},
		}},
		CurrentContext: name,
		Users: []NamedUser{{
			Name: name,
			User: UserEntry{
				Exec: ExecConfig{
					APIVersion: "client.authentication.k8s.io/v1beta1",
					Command:    "aws",
					Args: []string{
						"--region", region,
						"eks", "get-token",
						"--cluster-name", cluster.Name,
						"--output", "json",
					},
				},
			},
		}},
	}
}

// Write serializes the kubeconfig to path, creating parent directories.
func Write(path string, cluster awsapi.Cluster, region string) error {
	if cluster.Endpoint == "" {
		return fmt.Errorf("cluster %s has no endpoint yet; is it active?", cluster.Name)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(Build(cluster, region))
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

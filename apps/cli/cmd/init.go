package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/abdul-hamid-achik/hitchain/packages/core/config"
	"github.com/abdul-hamid-achik/hitchain/packages/core/suite"
)

var (
	forceInit bool
	yamlInit  bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new hitchain project",
	Long: `Initialize a new hitchain project in the current directory.

This creates:
  - conf/test_cases.json   - Example suite (conf/test_cases.yaml with --yaml)
  - .hitchain.config.json  - Configuration file with the defaults

Examples:
  hitchain init
  hitchain init --yaml
  hitchain init --force`,
	RunE: initCommand,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite existing files")
	initCmd.Flags().BoolVar(&yamlInit, "yaml", false, "Write the example suite as YAML")
}

type scaffoldFile struct {
	Env   map[string]string `json:"env" yaml:"env"`
	Tests []scaffoldTest    `json:"tests" yaml:"tests"`
}

type scaffoldTest struct {
	Name     string                 `json:"name" yaml:"name"`
	Positive bool                   `json:"positive" yaml:"positive"`
	Request  scaffoldRequest        `json:"request" yaml:"request"`
	Response scaffoldResponse       `json:"response" yaml:"response"`
	SetEnv   []suite.ExtractionRule `json:"setEnv,omitempty" yaml:"setEnv,omitempty"`
}

type scaffoldRequest struct {
	Method    string         `json:"method" yaml:"method"`
	Path      string         `json:"path" yaml:"path"`
	WithToken bool           `json:"withToken" yaml:"withToken"`
	Body      map[string]any `json:"body,omitempty" yaml:"body,omitempty"`
}

type scaffoldResponse struct {
	Status int `json:"status" yaml:"status"`
}

func exampleSuite() scaffoldFile {
	return scaffoldFile{
		Env: map[string]string{
			"clientId": "hitchain",
			"username": "admin",
			"password": "admin",
		},
		Tests: []scaffoldTest{
			{
				Name:     "Login",
				Positive: true,
				Request: scaffoldRequest{
					Method: "POST",
					Path:   "/v1/login",
					Body: map[string]any{
						"username": "${username}",
						"password": "${password}",
					},
				},
				Response: scaffoldResponse{Status: 200},
				SetEnv:   []suite.ExtractionRule{{ResponseKey: "token", EnvKey: "authToken"}},
			},
			{
				Name:     "Create user",
				Positive: true,
				Request: scaffoldRequest{
					Method:    "POST",
					Path:      "/v1/users",
					WithToken: true,
					Body:      map[string]any{"name": "Jane"},
				},
				Response: scaffoldResponse{Status: 201},
				SetEnv:   []suite.ExtractionRule{{ResponseKey: "id", EnvKey: "userId"}},
			},
			{
				Name:     "Get user",
				Positive: true,
				Request:  scaffoldRequest{Method: "GET", Path: "/v1/users/${userId}", WithToken: true},
				Response: scaffoldResponse{Status: 200},
			},
			{
				Name:     "Get user without token",
				Positive: false,
				Request:  scaffoldRequest{Method: "GET", Path: "/v1/users/${userId}"},
				Response: scaffoldResponse{Status: 401},
			},
		},
	}
}

func marshalSuite(s scaffoldFile, asYAML bool) ([]byte, error) {
	if asYAML {
		return yaml.Marshal(s)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func initCommand(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	suitePath := suite.DefaultPath
	if yamlInit {
		suitePath = filepath.Join(filepath.Dir(suite.DefaultPath), "test_cases.yaml")
	}
	suiteFile := filepath.Join(cwd, suitePath)
	configFile := filepath.Join(cwd, config.ConfigFilenames[0])

	if !forceInit {
		for _, f := range []string{suiteFile, configFile} {
			if _, err := os.Stat(f); err == nil {
				return configError(fmt.Errorf("file already exists: %s (use --force to overwrite)", f))
			}
		}
	}

	settings := config.DefaultConfig()
	settings.File = suitePath
	if err := settings.SaveConfig(configFile); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", configFile)

	content, err := marshalSuite(exampleSuite(), yamlInit)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(suiteFile), 0755); err != nil {
		return fmt.Errorf("failed to create suite directory: %w", err)
	}
	if err := os.WriteFile(suiteFile, content, 0644); err != nil {
		return fmt.Errorf("failed to create suite file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", suiteFile)

	fmt.Fprintf(cmd.OutOrStdout(), "\nhitchain project initialized!\n")
	fmt.Fprintf(cmd.OutOrStdout(), "Run 'hitchain run <port>' to execute the example tests.\n")

	return nil
}

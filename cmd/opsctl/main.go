package main

import (
	"os"

	"solara.ai/insights-gateway/config/environment_variables"
)

func main() {
	environment_variables.EnvironmentVariables.LoadFromEnv()
	if err := NewRootCommand(NewEnvDeps()).Execute(); err != nil {
		os.Exit(1)
	}
}

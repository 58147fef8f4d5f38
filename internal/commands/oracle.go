package commands

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/radicalcardists/card-recommender/internal/oracle"
)

// OracleConfig contains common flag definitions for the chat-completion
// oracle used by intent parsing, benefit analysis and response generation
type OracleConfig struct {
	// OracleAPIKey is the API key for the chat-completion endpoint
	OracleAPIKey string `help:"API key for the chat-completion endpoint" env:"ORACLE_API_KEY"`
	// OracleEndpoint is an optional OpenAI-compatible base URL (OpenRouter, LMStudio, etc)
	OracleEndpoint string `help:"OpenAI-compatible chat endpoint" env:"ORACLE_ENDPOINT"`
	// OracleModel is the model used for structured extraction calls
	OracleModel string `help:"Model to use for oracle calls" default:"gpt-4o-mini" env:"ORACLE_MODEL"`
	// OracleMaxAttempts bounds the validation-feedback retry loop
	OracleMaxAttempts int `help:"Maximum attempts per oracle call" default:"3" env:"ORACLE_MAX_ATTEMPTS"`
}

// SetupOracle creates the oracle client from the config
func SetupOracle(config OracleConfig, logger *log.Logger) (*oracle.Client, error) {
	if config.OracleAPIKey == "" && config.OracleEndpoint == "" {
		return nil, fmt.Errorf("oracle api key is required (or point --oracle-endpoint at a local server)")
	}
	if config.OracleMaxAttempts <= 0 {
		return nil, fmt.Errorf("oracle max attempts must be greater than 0")
	}
	apiKey := config.OracleAPIKey
	if apiKey == "" {
		apiKey = "dummy"
	}
	return oracle.NewClientWithEndpoint(logger, apiKey, config.OracleEndpoint, config.OracleModel, config.OracleMaxAttempts), nil
}

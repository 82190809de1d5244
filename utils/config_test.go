package utils

import (
	"os"
	"reflect"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestGetEnv(t *testing.T) {
	os.Setenv("TEST_ENV_VAR", "test-value")
	defer os.Unsetenv("TEST_ENV_VAR")

	value := getEnv("TEST_ENV_VAR", "default-value")
	assert.Equal(t, "test-value", value)

	value = getEnv("NON_EXISTENT_VAR", "default-value")
	assert.Equal(t, "default-value", value)
}

func TestGetEnvAsInt(t *testing.T) {
	os.Setenv("TEST_INT_VAR", "42")
	defer os.Unsetenv("TEST_INT_VAR")

	value := getEnvAsInt("TEST_INT_VAR", 10)
	assert.Equal(t, 42, value)

	os.Setenv("TEST_INVALID_INT_VAR", "not-an-int")
	defer os.Unsetenv("TEST_INVALID_INT_VAR")

	value = getEnvAsInt("TEST_INVALID_INT_VAR", 10)
	assert.Equal(t, 10, value)

	value = getEnvAsInt("NON_EXISTENT_VAR", 10)
	assert.Equal(t, 10, value)
}

func TestValidateConfig(t *testing.T) {
	validConfig := &Config{
		Reddit: RedditConfig{
			UserAgent: "topicscout/2.0",
		},
		Server: ServerConfig{
			Port:                 8080,
			MaxRequestsPerMinute: 60,
		},
	}
	assert.NoError(t, validateConfig(validConfig))

	invalidPort := &Config{
		Reddit: RedditConfig{UserAgent: "agent"},
		Server: ServerConfig{Port: 0, MaxRequestsPerMinute: 60},
	}
	err := validateConfig(invalidPort)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "SERVER_PORT")

	missingAgent := &Config{
		Reddit: RedditConfig{UserAgent: ""},
		Server: ServerConfig{Port: 8080, MaxRequestsPerMinute: 60},
	}
	err = validateConfig(missingAgent)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "REDDIT_USER_AGENT")
}

func TestLoadConfigToleratesMissingCredentials(t *testing.T) {
	// missing upstream credentials degrade functionality, they don't fail startup
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	config, err := LoadConfig("./does-not-exist.env", log)
	assert.NoError(t, err)
	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, "gemini-2.0-flash", config.Gemini.Model)
}

func TestParseSubreddits(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "Single subreddit",
			input:    "technology",
			expected: []string{"technology"},
		},
		{
			name:     "Multiple subreddits",
			input:    "all,AskReddit,technology",
			expected: []string{"all", "AskReddit", "technology"},
		},
		{
			name:     "Subreddits with whitespace",
			input:    "all, AskReddit, technology",
			expected: []string{"all", "AskReddit", "technology"},
		},
		{
			name:     "Extra commas",
			input:    ",all,,technology,",
			expected: []string{"all", "technology"},
		},
		{
			name:     "Empty string",
			input:    "",
			expected: []string{},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := parseSubreddits(tc.input)
			if !reflect.DeepEqual(result, tc.expected) {
				t.Errorf("parseSubreddits(%q) = %v; want %v", tc.input, result, tc.expected)
			}
		})
	}
}

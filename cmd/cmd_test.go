package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	rootApp.Writer = &out
	t.Cleanup(func() {
		rootApp.Writer = os.Stdout
	})

	err := rootApp.RunContext(context.Background(), append([]string{appName}, args...))
	return out.String(), err
}

func TestSynth_JSON(t *testing.T) {
	out, err := runApp(t, "synth")
	require.NoError(t, err)

	var tmpl struct {
		Resources map[string]struct {
			Type string `json:"Type"`
		} `json:"Resources"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &tmpl))

	assert.Equal(t, "AWS::Lambda::Function", tmpl.Resources["HelloHandler"].Type)
	assert.Equal(t, "AWS::ApiGateway::Deployment", tmpl.Resources["APIGatewayDeployment"].Type)
}

func TestSynth_YAMLToFile(t *testing.T) {
	output := filepath.Join(t.TempDir(), "template.yaml")

	_, err := runApp(t, "synth", "--format", "yaml", "--output", output)
	require.NoError(t, err)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(data), "AWS::Lambda::Permission")
}

func TestSynth_InvalidFormat(t *testing.T) {
	_, err := runApp(t, "synth", "--format", "xml")
	assert.Error(t, err)
}

func TestSynth_ConfigFileAndFlags(t *testing.T) {
	config := filepath.Join(t.TempDir(), "hello.env")
	require.NoError(t, os.WriteFile(config, []byte("STACK__FUNCTION__MEMORY_SIZE=256\n"), 0o644))

	out, err := runApp(t, "--config", config, "--stack-name", "Other", "synth")
	require.NoError(t, err)
	assert.Contains(t, out, `"MemorySize": 256`)
}

func TestInvoke_Local(t *testing.T) {
	out, err := runApp(t, "invoke", "--event", `{"message":"test"}`)
	require.NoError(t, err)

	assert.JSONEq(t, `{"statusCode":200,"body":"{\"message\":\"Hello World\"}"}`, out)
}

func TestInvoke_InvalidEvent(t *testing.T) {
	_, err := runApp(t, "invoke", "--event", `{"message":`)
	assert.Error(t, err)
}

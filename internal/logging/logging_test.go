package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug":  zerolog.DebugLevel,
		" WARN ": zerolog.WarnLevel,
		"error":  zerolog.ErrorLevel,
		"":       zerolog.InfoLevel,
		"trace?": zerolog.InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestStartupLogger(t *testing.T) {
	prev, prevLevel := log.Logger, zerolog.GlobalLevel()
	defer func() {
		log.Logger = prev
		zerolog.SetGlobalLevel(prevLevel)
	}()
	t.Setenv("AWS_LAMBDA_FUNCTION_NAME", "")

	var buf bytes.Buffer
	InitWriter(&buf, zerolog.InfoLevel)

	NewStartupLogger("tripstory").
		Version("1.2.3").
		S3Bucket("images", "tripstory-images").
		DynamoTable("gallery", "").
		SSMParam("arkKey", "/tripstory/ark").
		Feature("planner", true).
		Config("imageBackend", "ark").
		Log()

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("startup event is not JSON: %v\n%s", err, buf.String())
	}
	process := got["process"].(map[string]any)
	if process["name"] != "tripstory" || process["version"] != "1.2.3" {
		t.Errorf("unexpected process dict: %v", process)
	}
	if _, ok := process["functionName"]; ok {
		t.Error("functionName should be omitted outside Lambda")
	}
	resources := got["resources"].(map[string]any)
	if _, ok := resources["dynamoTables"]; ok {
		t.Error("empty table name should not be registered")
	}
	if resources["ssmParams"].(map[string]any)["arkKey"] != "/tripstory/ark" {
		t.Errorf("unexpected resources: %v", resources)
	}
	if got["features"].(map[string]any)["planner"] != true {
		t.Errorf("unexpected features: %v", got["features"])
	}
	if got["message"] != "Startup complete" {
		t.Errorf("unexpected message %v", got["message"])
	}
}

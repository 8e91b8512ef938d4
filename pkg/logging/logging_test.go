package logging

import (
	"testing"

	"github.com/ksco/relink/pkg/test"
)

func TestParseLevel(t *testing.T) {
	for name, want := range map[string]int{
		"silent":  LogLevelSilent,
		"error":   LogLevelError,
		"warning": LogLevelWarning,
		"verbose": LogLevelVerbose,
	} {
		level, ok := ParseLevel(name)
		test.ExpectSuccess(t, ok, name)
		test.ExpectEquality(t, level, want, name)
	}

	level, ok := ParseLevel("chatty")
	test.ExpectFailure(t, ok)
	test.ExpectEquality(t, level, LogLevelWarning)
}

func TestInitialize(t *testing.T) {
	defer SetLevel(LogLevelWarning)

	Initialize("silent")
	test.ExpectEquality(t, Level(), LogLevelSilent)

	Initialize("bogus")
	test.ExpectEquality(t, Level(), LogLevelWarning)
}

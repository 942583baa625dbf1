package uartx

import (
	"bufio"
	"go/build/constraint"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildConstraint(t *testing.T, path string) constraint.Expr {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		if constraint.IsGoBuild(line) {
			expr, err := constraint.Parse(line)
			require.NoError(t, err)
			return expr
		}
		if line != "" && !strings.HasPrefix(line, "//") {
			break
		}
	}
	t.Fatalf("%s has no build constraint", path)
	return nil
}

// USART0 doubles as TinyGo's console port, so the AVR backend only builds
// when the runtime is told not to use it.
func TestAVRBackend_RequiresSerialNone(t *testing.T) {
	expr := buildConstraint(t, "avr.go")
	tags := func(set ...string) func(string) bool {
		return func(tag string) bool {
			for _, s := range set {
				if s == tag {
					return true
				}
			}
			return false
		}
	}
	assert.False(t, expr.Eval(tags("atmega328p")))
	assert.False(t, expr.Eval(tags("atmega328p", "serial.uart")))
	assert.True(t, expr.Eval(tags("atmega328p", "serial.none")))
	assert.False(t, expr.Eval(tags("rp2040", "serial.none")))
}

// Package ticketing implements unique ticket-code generation with
// collision retry and the best-effort fan-out of ticket media after a
// booking completes (spec §4.8). Code generation is grounded on the
// teacher's utils/random.go GenerateCode: read crypto/rand bytes, render
// uppercase hex.
package ticketing

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/pocketbase/pocketbase/core"

	"ticketbot/internal/status"
)

const maxCodeAttempts = 10

// GenerateUniqueCodes draws n codes of the form XXXX-XXXX (8 uppercase
// hex characters, hyphenated at the midpoint), checking each against the
// tickets table for existing use. Gives up after maxCodeAttempts draws
// per code.
func GenerateUniqueCodes(app core.App, n int) ([]string, error) {
	codes := make([]string, 0, n)
	seen := make(map[string]bool, n)

	for i := 0; i < n; i++ {
		code, err := drawUnusedCode(app, seen)
		if err != nil {
			return nil, err
		}
		seen[code] = true
		codes = append(codes, code)
	}
	return codes, nil
}

func drawUnusedCode(app core.App, seen map[string]bool) (string, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := randomCode()
		if err != nil {
			return "", status.New(status.InternalError, err)
		}
		if seen[code] {
			continue
		}

		_, err = app.FindFirstRecordByFilter("tickets", "unique_code = {:code}", map[string]interface{}{"code": code})
		if err != nil {
			// Not found means the code is unused.
			return code, nil
		}
	}
	return "", status.New(status.CodeGenerationExhausted, nil)
}

func randomCode() (string, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	hexStr := strings.ToUpper(hex.EncodeToString(buf))
	return fmt.Sprintf("%s-%s", hexStr[:4], hexStr[4:]), nil
}

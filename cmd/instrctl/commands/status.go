package commands

import (
	"strconv"
	"strings"

	"github.com/arloliu/go-instr/logger"
	"github.com/arloliu/go-instr/session"
)

// IEEE 488.2 status bits.
const (
	stbESB = 0x20 // event status summary

	// esrErrors masks query, device dependent, execution and command errors.
	esrErrors = 0x3C
)

// esrInterpreter reads the event status register whenever the summary bit
// is set and turns reported errors into a fatal verdict carrying the ESR.
func esrInterpreter(s *session.Session, l logger.Logger) session.Interpreter {
	return func(stb byte, tag string) session.Verdict {
		if stb&stbESB == 0 {
			return session.OK()
		}

		resp, err := s.QueryString("*ESR?\n", 32)
		if err != nil {
			l.Warn("instrctl: cannot read event status register", "tag", tag, "error", err)
			return session.OK()
		}

		esr, err := strconv.Atoi(strings.TrimSpace(resp))
		if err != nil {
			l.Warn("instrctl: unexpected *ESR? response", "tag", tag, "response", resp)
			return session.OK()
		}

		if esr&esrErrors != 0 {
			l.Error("instrctl: instrument reported an error", "tag", tag, "stb", stb, "esr", esr)
			return session.Fatal(esr)
		}

		return session.OK()
	}
}

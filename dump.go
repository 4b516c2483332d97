package pmx

import (
	"bytes"
	"fmt"

	"github.com/davecgh/go-spew/spew"
)

var spewConfig *spew.ConfigState

func init() {
	spewConfig = spew.NewDefaultConfig()
	spewConfig.DisableCapacities = true
}

func sdump(a ...interface{}) string {
	return spewConfig.Sdump(a...)
}

func dumpOneLine(buf []byte) string {
	var out bytes.Buffer
	for _, b := range buf {
		if b >= 0x20 && b <= 0x7f {
			out.WriteRune(rune(b))
		} else {
			out.WriteString(fmt.Sprintf("\\x%.2x", b))
		}
	}
	return out.String()
}

package registry

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/DeBrosOfficial/caseledger/pkg/provider"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

var reasonStringPattern = regexp.MustCompile(`reverted with reason string '(.*)'`)

// revertReason extracts a human readable reason from a provider revert
// error. It returns "" when none is available.
func revertReason(err error) string {
	re, ok := provider.AsRPCError(err)
	if !ok {
		return ""
	}
	if len(re.Data) > 0 {
		var encoded string
		if json.Unmarshal(re.Data, &encoded) == nil {
			if data, decErr := hexutil.Decode(encoded); decErr == nil {
				if reason, unpackErr := abi.UnpackRevert(data); unpackErr == nil {
					return reason
				}
			}
		}
	}
	if m := reasonStringPattern.FindStringSubmatch(re.Message); m != nil {
		return m[1]
	}
	if i := strings.Index(re.Message, "execution reverted:"); i >= 0 {
		return strings.TrimSpace(re.Message[i+len("execution reverted:"):])
	}
	return ""
}

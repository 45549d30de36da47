package codec

import (
	"strings"

	"proxypulse/internal/domain/node"
	"proxypulse/internal/domain/node/valueobjects"
	"proxypulse/internal/errs"
)

const vmessPrefix = "vmess://"

// parseVMess decodes vmess://<base64(json)> per the v2rayN convention.
func parseVMess(line, provenance string) (node.Node, error) {
	body := strings.TrimPrefix(line, vmessPrefix)
	cfg, uuid, server, port, remarks, err := valueobjects.ParseVMessJSON(body)
	if err != nil {
		return node.Node{}, errs.WrapDecode(err)
	}
	n, err := node.New(valueobjects.ProtocolVMess, server, port, remarks, provenance)
	if err != nil {
		return node.Node{}, errs.WrapMalformed(err.Error())
	}
	return n.WithVMess(cfg).WithID(uuid), nil
}

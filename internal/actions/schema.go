package actions

import (
	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"

	"github.com/shopopti/extension-gateway/internal/gateway"
)

// Payload schemas. Shape and type constraints live here; size caps and
// semantic checks (UUID formats, list bounds) are enforced in the handlers.

const importPayloadSrc = `
product: {
	title:        string & !=""
	url:          string & =~"^https?://"
	description?: string
	price?:       number & >=0
	costPrice?:   number & >=0
	currency?:    string
	sku?:         string
	category?:    string
	images?:      [...string & =~"^https?://"]
	platform?:    string
	variants?:    [...{...}]
}
`

const bulkImportPayloadSrc = `
products: [...{
	title:        string & !=""
	url:          string & =~"^https?://"
	description?: string
	price?:       number & >=0
	costPrice?:   number & >=0
	currency?:    string
	sku?:         string
	category?:    string
	images?:      [...string & =~"^https?://"]
	platform?:    string
}]
`

const aiPayloadSrc = `
product: {
	title:        string & !=""
	description?: string
}
language: string | *"fr"
`

const syncPayloadSrc = `
productIds: [...string & !=""]
`

const generateTokenPayloadSrc = `
userId:  string & !=""
scopes?: [...string & !=""]
plan?:   "free" | "pro" | "ultra_pro"
`

const refreshTokenPayloadSrc = `
refreshToken: string & !=""
`

var (
	cuectx = cuecontext.New()

	importPayloadSchema        = mustCompileSchema(importPayloadSrc)
	bulkImportPayloadSchema    = mustCompileSchema(bulkImportPayloadSrc)
	aiPayloadSchema            = mustCompileSchema(aiPayloadSrc)
	syncPayloadSchema          = mustCompileSchema(syncPayloadSrc)
	generateTokenPayloadSchema = mustCompileSchema(generateTokenPayloadSrc)
	refreshTokenPayloadSchema  = mustCompileSchema(refreshTokenPayloadSrc)
)

func mustCompileSchema(src string) cue.Value {
	v := cuectx.CompileString(src)
	if err := v.Err(); err != nil {
		panic("actions: bad payload schema: " + err.Error())
	}
	return v
}

// decodePayload unifies payload with schema, validates the result and decodes
// it into out. Schema violations surface as INVALID_PAYLOAD with the CUE error
// detail attached.
func decodePayload(schema cue.Value, payload map[string]any, out any) error {
	v := cuectx.Encode(payload)
	if err := v.Err(); err != nil {
		return invalidPayload(err)
	}
	unified := schema.Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return invalidPayload(err)
	}
	if out != nil {
		if err := unified.Decode(out); err != nil {
			return invalidPayload(err)
		}
	}
	return nil
}

func invalidPayload(err error) error {
	return gateway.NewError(gateway.CodeInvalidPayload, "invalid payload").
		WithDetail("error", cueerrors.Details(err, nil))
}

// truncate caps a string at n bytes; payload text is stored bounded.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package protocol

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// ValidateToolArguments validates tool arguments against the tool's JSON Schema.
func ValidateToolArguments(tool Tool, arguments map[string]interface{}) error {
	if len(tool.InputSchema) == 0 {
		return nil
	}

	schemaLoader := gojsonschema.NewGoLoader(tool.InputSchema)
	argsLoader := gojsonschema.NewGoLoader(arguments)

	result, err := gojsonschema.Validate(schemaLoader, argsLoader)
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, e := range result.Errors() {
			errs[i] = e.String()
		}
		return fmt.Errorf("invalid arguments: %v", errs)
	}

	return nil
}

// ValidateRequest validates a JSON-RPC request.
func ValidateRequest(req *Request) error {
	if req.JSONRPC != JSONRPCVersion {
		return fmt.Errorf("invalid jsonrpc version: %s (expected %s)", req.JSONRPC, JSONRPCVersion)
	}
	if req.Method == "" {
		return fmt.Errorf("method is required")
	}
	return nil
}

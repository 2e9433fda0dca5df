/*
Copyright 2025 The Meridian Authors
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at
    http://www.apache.org/licenses/LICENSE-2.0
Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package metadata

import (
	"strings"

	kitmd "github.com/dapr/kit/metadata"
)

// Base is the common metadata across components.
// Component-specific metadata structs are decoded from Properties.
type Base struct {
	// Name is the name of the component instance.
	Name string
	// Properties is the metadata properties.
	Properties map[string]string `json:"properties,omitempty"`
}

// GetProperty returns the value of a property, looking it up case-insensitively.
func (b Base) GetProperty(names ...string) (string, bool) {
	// Look for "names" inside the map and not vice-versa, so the order of
	// preference among aliases is guaranteed.
	mdkeys := make(map[string]string, len(b.Properties))
	for k := range b.Properties {
		mdkeys[strings.ToLower(k)] = k
	}

	for _, k := range names {
		mapK := mdkeys[strings.ToLower(k)]
		if mapK != "" {
			return b.Properties[mapK], true
		}
	}

	return "", false
}

// DecodeMetadata decodes the properties map into the target struct, honoring
// `mapstructure` tags and the kit type conversion hooks (durations, booleans,
// string slices).
func DecodeMetadata(properties map[string]string, target any) error {
	return kitmd.DecodeMetadata(properties, target)
}

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

// Package bedrock adapts Anthropic models served through AWS Bedrock to
// the provider.Provider contract. It reuses anthropic-sdk-go's Bedrock
// backend (github.com/anthropics/anthropic-sdk-go/bedrock), which signs
// requests with an aws-sdk-go-v2 config rather than going through
// bedrockruntime directly.
package bedrock

import (
	"context"
	"fmt"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"

	weaveanthropic "github.com/weaveloop/weave/internal/provider/anthropic"
)

// DefaultModelID is used when Config.ModelID is empty.
const DefaultModelID = "anthropic.claude-sonnet-4-20250514-v1:0"

// DefaultRegion is used when Config.Region is empty.
const DefaultRegion = "us-east-1"

// Config configures a Bedrock-backed Adapter.
type Config struct {
	ModelID         string
	Region          string
	Profile         string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// New builds an aws-sdk-go-v2 config from cfg (explicit credentials,
// named profile, or the default chain, in that preference order) and
// returns an adapter wrapping anthropic-sdk-go's Bedrock transport. The
// returned value reuses the anthropic adapter's Stream/Complete/event
// translation unchanged — Bedrock only changes how requests are signed
// and routed, not the Messages API shape.
func New(ctx context.Context, cfg Config) (*weaveanthropic.Adapter, error) {
	if cfg.ModelID == "" {
		cfg.ModelID = DefaultModelID
	}
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}

	var awsCfg aws.Config
	var err error
	switch {
	case cfg.AccessKeyID != "" && cfg.SecretAccessKey != "":
		awsCfg, err = config.LoadDefaultConfig(ctx,
			config.WithRegion(cfg.Region),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken)),
		)
	case cfg.Profile != "":
		awsCfg, err = config.LoadDefaultConfig(ctx,
			config.WithRegion(cfg.Region),
			config.WithSharedConfigProfile(cfg.Profile),
		)
	default:
		awsCfg, err = config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	}
	if err != nil {
		return nil, fmt.Errorf("bedrock: load AWS config: %w", err)
	}

	client := sdkanthropic.NewClient(bedrock.WithConfig(awsCfg))
	return weaveanthropic.NewWithClient(client, cfg.ModelID), nil
}

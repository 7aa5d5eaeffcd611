package mcp

import (
	"context"
	"encoding/base64"
	"fmt"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/zot/vega/internal/assets"
)

// AssetScheme prefixes asset resource URIs.
const AssetScheme = "asset://"

func assetTemplate() mcp.ResourceTemplate {
	return mcp.NewResourceTemplate(AssetScheme+"{path}", "Packaged asset",
		mcp.WithTemplateDescription("Content of a packaged asset by path"),
		mcp.WithTemplateMIMEType("text/plain"),
	)
}

func (s *Server) registerResources() {
	s.mcp.AddResourceTemplate(assetTemplate(), s.handleReadAssetResource)
}

// mimeType guesses a MIME type from the asset extension.
func mimeType(name string) string {
	switch path.Ext(name) {
	case ".lua", ".lc":
		return "text/x-lua"
	case ".json":
		return "application/json"
	default:
		return "text/plain"
	}
}

// handleReadAssetResource returns text assets as text and anything that is not
// valid UTF-8 as a base64 blob.
func (s *Server) handleReadAssetResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := req.Params.URI
	if !strings.HasPrefix(uri, AssetScheme) {
		return nil, fmt.Errorf("not an asset uri: %s", uri)
	}
	name := strings.TrimPrefix(uri, AssetScheme)
	data, err := assets.ReadAll(s.store, name)
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(data) {
		return []mcp.ResourceContents{
			mcp.BlobResourceContents{
				URI:      uri,
				MIMEType: "application/octet-stream",
				Blob:     base64.StdEncoding.EncodeToString(data),
			},
		}, nil
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: mimeType(name),
			Text:     string(data),
		},
	}, nil
}

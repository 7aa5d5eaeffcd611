package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/zot/vega/internal/assets"
)

func searchModuleTool() mcp.Tool {
	return mcp.NewTool("search_module",
		mcp.WithDescription("Resolve a module name the way require() searches the packaged assets"),
		mcp.WithString("name", mcp.Required(), mcp.Description("Module name as passed to require")),
	)
}

func listAssetsTool() mcp.Tool {
	return mcp.NewTool("list_assets",
		mcp.WithDescription("List the entries of an asset directory"),
		mcp.WithString("dir", mcp.Description("Asset directory, empty for the root")),
	)
}

func readAssetTool() mcp.Tool {
	return mcp.NewTool("read_asset",
		mcp.WithDescription("Read a packaged asset"),
		mcp.WithString("path", mcp.Required(), mcp.Description("Asset path, e.g. vega_lua/util.lua")),
	)
}

func requireModuleTool() mcp.Tool {
	return mcp.NewTool("require_module",
		mcp.WithDescription("Load a module with require() and return its value as JSON"),
		mcp.WithString("name", mcp.Required(), mcp.Description("Module name as passed to require")),
	)
}

func (s *Server) registerTools() {
	s.mcp.AddTool(searchModuleTool(), s.handleSearchModule)
	s.mcp.AddTool(listAssetsTool(), s.handleListAssets)
	s.mcp.AddTool(readAssetTool(), s.handleReadAsset)
	s.mcp.AddTool(requireModuleTool(), s.handleRequireModule)
}

func (s *Server) handleSearchModule(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	path, ok, err := s.runtime.Search(name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("module %q not found in assets", name)), nil
	}
	s.log(2, "mcp search_module %s: %s", name, path)
	return mcp.NewToolResultText(path), nil
}

func (s *Server) handleListAssets(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	dir := req.GetString("dir", "")
	names, err := assets.List(s.store, dir)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("list %q: %v", dir, err)), nil
	}
	return mcp.NewToolResultText(strings.Join(names, "\n")), nil
}

func (s *Server) handleReadAsset(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := assets.ReadAll(s.store, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return mcp.NewToolResultError(fmt.Sprintf("asset %q not found", path)), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !utf8.Valid(data) {
		return mcp.NewToolResultError(fmt.Sprintf("asset %q is not text (%d bytes)", path, len(data))), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleRequireModule(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	value, err := s.runtime.Require(name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, err := json.Marshal(value)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("module %q: %v", name, err)), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

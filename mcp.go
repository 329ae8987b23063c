package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	_ "embed"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"dx7bridge/library"
	"dx7bridge/sysex"
)

// mcpTools holds what the tool handlers work on. lib may be nil when no
// library directory is configured.
type mcpTools struct {
	lib       *library.Library
	dx        *DX7
	chordHold time.Duration
	timing    noteTiming
}

func newMCPServer(t *mcpTools) *server.MCPServer {
	s := server.NewMCPServer(
		"DX7 MCP",
		version,
		server.WithToolCapabilities(false),
	)

	docTool := mcp.NewTool("dx7_describe-sysex",
		mcp.WithDescription("Returns the SysEx format description for the Yamaha DX7, including the JSON voice model."),
	)
	s.AddTool(docTool, docToolHandler)

	listBanksTool := mcp.NewTool("dx7_list-banks",
		mcp.WithDescription("Lists the SysEx files of the library with their patch counts."),
	)
	s.AddTool(listBanksTool, t.listBanks)

	listPatchesTool := mcp.NewTool("dx7_list-patches",
		mcp.WithDescription("Lists the patches of one library bank."),
		mcp.WithNumber("bank", mcp.Required(), mcp.Description("Bank index as returned by dx7_list-banks.")),
	)
	s.AddTool(listPatchesTool, t.listPatches)

	describeTool := mcp.NewTool("dx7_describe-patch",
		mcp.WithDescription("Returns a DX7 voice of the library as JSON."),
		mcp.WithNumber("bank", mcp.Required(), mcp.Description("Bank index as returned by dx7_list-banks.")),
		mcp.WithNumber("patch", mcp.Required(), mcp.Description("Patch index within the bank.")),
	)
	s.AddTool(describeTool, t.describePatch)

	sendPatchTool := mcp.NewTool("dx7_send-patch",
		mcp.WithDescription("Sends a library patch to the DX7."),
		mcp.WithNumber("bank", mcp.Required(), mcp.Description("Bank index as returned by dx7_list-banks.")),
		mcp.WithNumber("patch", mcp.Required(), mcp.Description("Patch index within the bank.")),
	)
	s.AddTool(sendPatchTool, t.sendPatch)

	sendVoiceTool := mcp.NewTool("dx7_send-voice",
		mcp.WithDescription("Builds a single-voice dump from JSON and sends it to the DX7 edit buffer."),
		mcp.WithString("voice-json", mcp.Required(), mcp.Description("The voice in JSON format. The JSON must conform to the voice model of dx7_describe-sysex.")),
	)
	s.AddTool(sendVoiceTool, t.sendVoice)

	randomTool := mcp.NewTool("dx7_send-random-voice",
		mcp.WithDescription("Randomizes the operators of a library voice, sends it and returns the result as JSON."),
		mcp.WithNumber("bank", mcp.Required(), mcp.Description("Bank index as returned by dx7_list-banks.")),
		mcp.WithNumber("patch", mcp.Required(), mcp.Description("Patch index within the bank.")),
	)
	s.AddTool(randomTool, t.sendRandomVoice)

	reloadTool := mcp.NewTool("dx7_reload-library",
		mcp.WithDescription("Rescans the library directory."),
	)
	s.AddTool(reloadTool, t.reloadLibrary)

	playTestTool := mcp.NewTool("dx7_play-test-notes",
		mcp.WithDescription("Plays test notes on the DX7."),
	)
	s.AddTool(playTestTool, t.playTestNotes)

	minor7Tool := mcp.NewTool("dx7_play-minor7",
		mcp.WithDescription("Plays a C minor 7 chord on the DX7."),
	)
	s.AddTool(minor7Tool, t.playMinor7)

	playNotesTool := mcp.NewTool("dx7_play-notes",
		mcp.WithDescription("Plays a sequence of notes on the DX7."),
		mcp.WithString("notes", mcp.Required(), mcp.Description("Notes like \"C4 E4 G4 r C5\", separated by spaces, commas, semicolons or bars. r or rest is a pause.")),
	)
	s.AddTool(playNotesTool, t.playNotes)

	return s
}

func runMCP(t *mcpTools) error {
	s := newMCPServer(t)
	log.Println("Starting DX7 MCP server...")

	if err := server.ServeStdio(s); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}

//go:embed dx7_sysex_format.txt
var sysexDoc string

func docToolHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	log.Println("[mcp] Handling SysEx documentation request.")

	return mcp.NewToolResultText(sysexDoc), nil
}

type bankInfo struct {
	Index   int    `json:"index"`
	Origin  string `json:"origin"`
	Path    string `json:"path"`
	Patches int    `json:"patches"`
}

type patchInfo struct {
	Index  int    `json:"index"`
	Name   string `json:"name"`
	Format string `json:"format"`
	Size   int    `json:"size"`
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	asJSON, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return mcp.NewToolResultText(string(asJSON)), nil
}

func (t *mcpTools) requireLibrary() (*library.Library, error) {
	if t.lib == nil {
		return nil, errors.New("no SysEx library configured; set library_dir in the config")
	}
	return t.lib, nil
}

// patchArg resolves the bank and patch arguments. Bad arguments come back as
// a tool error result so the caller can correct them.
func (t *mcpTools) patchArg(request mcp.CallToolRequest) (sysex.Patch, *mcp.CallToolResult) {
	lib, err := t.requireLibrary()
	if err != nil {
		return sysex.Patch{}, mcp.NewToolResultError(err.Error())
	}
	bank, err := request.RequireInt("bank")
	if err != nil {
		return sysex.Patch{}, mcp.NewToolResultError(err.Error())
	}
	index, err := request.RequireInt("patch")
	if err != nil {
		return sysex.Patch{}, mcp.NewToolResultError(err.Error())
	}
	p, err := lib.Patch(bank, index)
	if err != nil {
		return sysex.Patch{}, mcp.NewToolResultError(err.Error())
	}
	return p, nil
}

func voiceOf(p sysex.Patch) (*sysex.Voice, error) {
	params, err := sysex.ParamsFromSingleVoice(p.Data)
	if err != nil {
		return nil, fmt.Errorf("%q is a %s message of %d bytes, not a single voice", p.Name, p.Format, len(p.Data))
	}
	return sysex.VoiceFromParams(params), nil
}

func (t *mcpTools) listBanks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	log.Println("[mcp] Handling list banks request.")

	lib, err := t.requireLibrary()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	banks := []bankInfo{}
	for i, e := range lib.Banks() {
		banks = append(banks, bankInfo{Index: i, Origin: e.Origin, Path: e.Path, Patches: len(e.Patches)})
	}
	return jsonResult(banks)
}

func (t *mcpTools) listPatches(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	log.Println("[mcp] Handling list patches request.")

	lib, err := t.requireLibrary()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	index, err := request.RequireInt("bank")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	bank, err := lib.Bank(index)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	patches := make([]patchInfo, 0, len(bank.Patches))
	for i, p := range bank.Patches {
		patches = append(patches, patchInfo{Index: i, Name: p.Name, Format: p.Format.String(), Size: len(p.Data)})
	}
	return jsonResult(patches)
}

func (t *mcpTools) describePatch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	log.Println("[mcp] Handling describe patch request.")

	p, errResult := t.patchArg(request)
	if errResult != nil {
		return errResult, nil
	}
	v, err := voiceOf(p)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(v)
}

func (t *mcpTools) sendPatch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	log.Println("[mcp] Handling send patch request.")

	p, errResult := t.patchArg(request)
	if errResult != nil {
		return errResult, nil
	}
	if err := t.dx.SendPatch(p); err != nil {
		return nil, fmt.Errorf("failed to send patch: %w", err)
	}
	return mcp.NewToolResultText(fmt.Sprintf("Patch %q sent successfully.", p.Name)), nil
}

func (t *mcpTools) sendVoice(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	log.Println("[mcp] Handling send voice request.")

	voiceJSON, err := request.RequireString("voice-json")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var v sysex.Voice
	if err := json.Unmarshal([]byte(voiceJSON), &v); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to unmarshal voice JSON: %v", err)), nil
	}

	log.Println("[mcp] Sending voice to DX7:", v.Name)
	if err := t.dx.SendVoice(&v); err != nil {
		return nil, fmt.Errorf("failed to send voice: %w", err)
	}
	return mcp.NewToolResultText("Voice sent successfully."), nil
}

func (t *mcpTools) sendRandomVoice(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	log.Println("[mcp] Handling random voice request.")

	p, errResult := t.patchArg(request)
	if errResult != nil {
		return errResult, nil
	}
	v, err := voiceOf(p)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	v.RandomizeOperators()

	if err := t.dx.SendVoice(v); err != nil {
		return nil, fmt.Errorf("failed to send voice: %w", err)
	}
	return jsonResult(v)
}

func (t *mcpTools) reloadLibrary(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	log.Println("[mcp] Handling reload library request.")

	lib, err := t.requireLibrary()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := lib.Reload(); err != nil {
		return nil, fmt.Errorf("failed to reload library: %w", err)
	}
	return mcp.NewToolResultText(fmt.Sprintf("Library reloaded: %d banks.", len(lib.Banks()))), nil
}

func (t *mcpTools) playTestNotes(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := playTestNotes(ctx, t.dx); err != nil {
		return nil, fmt.Errorf("failed to play test notes: %w", err)
	}
	return mcp.NewToolResultText("Test notes played successfully."), nil
}

func (t *mcpTools) playMinor7(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := playMinor7Chord(ctx, t.dx, t.chordHold); err != nil {
		return nil, fmt.Errorf("failed to play minor 7 chord: %w", err)
	}
	return mcp.NewToolResultText("C minor 7 chord played successfully."), nil
}

func (t *mcpTools) playNotes(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	notes, err := request.RequireString("notes")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := playNotesFromText(ctx, t.dx, notes, t.timing); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("Notes played successfully."), nil
}

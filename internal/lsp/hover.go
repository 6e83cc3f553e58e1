package lsp

import (
	"encoding/json"
	"errors"

	"tiplens/internal/settings"
)

func (s *Server) handleHover(msg *rpcMessage) error {
	var params hoverParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.sendError(msg.ID, codeInvalidParams, "invalid params")
	}
	uri := canonicalURI(params.TextDocument.URI)
	content := s.engine.Hover(uri, toPoint(params.Position))
	if content == nil {
		return s.sendResponse(msg.ID, nil)
	}
	return s.sendResponse(msg.ID, hover{
		Contents: markupContent{Kind: "markdown", Value: content.Markdown()},
	})
}

func (s *Server) handleExecuteCommand(msg *rpcMessage) error {
	var params executeCommandParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.sendError(msg.ID, codeInvalidParams, "invalid params")
	}
	if err := s.engine.ExecuteCommand(s.runContext(), params.Command); err != nil {
		if errors.Is(err, settings.ErrPersist) {
			s.showMessage(messageError, "tiplens: could not save settings: "+err.Error())
			return s.sendError(msg.ID, codeInternalError, err.Error())
		}
		return s.sendError(msg.ID, codeInvalidParams, err.Error())
	}
	return s.sendResponse(msg.ID, nil)
}

package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"jsonkv/internal/jsonvalue"
)

// mutationRequest is the shared body shape of the POST commands. Only
// the fields a given command reads are required.
type mutationRequest struct {
	Path   string            `json:"path"`
	Value  json.RawMessage   `json:"value,omitempty"`
	Values []json.RawMessage `json:"values,omitempty"`
	Index  int               `json:"index,omitempty"`
	Start  int               `json:"start,omitempty"`
	Stop   int               `json:"stop,omitempty"`
}

func (r *mutationRequest) path() string {
	if r.Path == "" {
		return "$"
	}
	return r.Path
}

func bindMutation(c echo.Context) (*mutationRequest, error) {
	var req mutationRequest
	if err := c.Bind(&req); err != nil {
		return nil, err
	}
	return &req, nil
}

func (s *Server) handleKeys(c echo.Context) error {
	keys, err := s.store.Keys(c.Request().Context(), c.QueryParam("prefix"))
	if err != nil {
		return fail(c, err)
	}
	if keys == nil {
		keys = []string{}
	}
	return c.JSON(http.StatusOK, map[string][]string{"keys": keys})
}

func (s *Server) handleSet(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return fail(c, err)
	}
	if err := s.store.Set(c.Request().Context(), c.Param("key"), pathParam(c), body); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// handleGet returns every match as a JSON array. The store renders
// the array under its own lock, so a concurrent write cannot race the
// traversal or truncate the reply.
func (s *Server) handleGet(c echo.Context) error {
	out, err := s.store.GetJSON(c.Request().Context(), c.Param("key"), pathParam(c))
	if err != nil {
		return fail(c, err)
	}
	return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, out)
}

// handleMGet reads one path across several keys; absent keys and path
// misses come back as null entries in key order.
func (s *Server) handleMGet(c echo.Context) error {
	var req struct {
		Keys []string `json:"keys"`
		Path string   `json:"path"`
	}
	if err := c.Bind(&req); err != nil {
		return fail(c, err)
	}
	if req.Path == "" {
		req.Path = "$"
	}

	results, err := s.store.MGet(c.Request().Context(), req.Keys, req.Path)
	if err != nil {
		return fail(c, err)
	}

	out := []byte(`{"results":[`)
	for i, r := range results {
		if i > 0 {
			out = append(out, ',')
		}
		if r == nil {
			out = append(out, "null"...)
			continue
		}
		out = append(out, r...)
	}
	out = append(out, ']', '}')
	return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, out)
}

func (s *Server) handleDel(c echo.Context) error {
	n, err := s.store.Del(c.Request().Context(), c.Param("key"), pathParam(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]int{"deleted": n})
}

func (s *Server) handleType(c echo.Context) error {
	types, err := s.store.TypeOf(c.Request().Context(), c.Param("key"), pathParam(c))
	if err != nil {
		return fail(c, err)
	}
	if types == nil {
		types = []string{}
	}
	return c.JSON(http.StatusOK, map[string][]string{"types": types})
}

func (s *Server) handleStrLen(c echo.Context) error {
	lens, err := s.store.StrLen(c.Request().Context(), c.Param("key"), pathParam(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, lengthsBody(lens))
}

func (s *Server) handleArrLen(c echo.Context) error {
	lens, err := s.store.ArrLen(c.Request().Context(), c.Param("key"), pathParam(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, lengthsBody(lens))
}

func (s *Server) handleObjLen(c echo.Context) error {
	lens, err := s.store.ObjLen(c.Request().Context(), c.Param("key"), pathParam(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, lengthsBody(lens))
}

func (s *Server) handleObjKeys(c echo.Context) error {
	keys, err := s.store.ObjKeys(c.Request().Context(), c.Param("key"), pathParam(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string][][]string{"keys": keys})
}

func (s *Server) handleNumIncrBy(c echo.Context) error {
	return s.numericOp(c, s.store.NumIncrBy)
}

func (s *Server) handleNumMultBy(c echo.Context) error {
	return s.numericOp(c, s.store.NumMultBy)
}

func (s *Server) handleNumPowBy(c echo.Context) error {
	return s.numericOp(c, s.store.NumPowBy)
}

func (s *Server) numericOp(c echo.Context, op func(ctx context.Context, key, path string, operand *jsonvalue.Value) ([]*jsonvalue.Value, error)) error {
	req, err := bindMutation(c)
	if err != nil {
		return fail(c, err)
	}
	operand, err := jsonvalue.Parse(req.Value)
	if err != nil {
		return fail(c, err)
	}

	results, err := op(c.Request().Context(), c.Param("key"), req.path(), operand)
	if err != nil {
		return fail(c, err)
	}
	return valuesReply(c, results)
}

func (s *Server) handleToggle(c echo.Context) error {
	req, err := bindMutation(c)
	if err != nil {
		return fail(c, err)
	}
	results, err := s.store.Toggle(c.Request().Context(), c.Param("key"), req.path())
	if err != nil {
		return fail(c, err)
	}
	return valuesReply(c, results)
}

func (s *Server) handleStrAppend(c echo.Context) error {
	req, err := bindMutation(c)
	if err != nil {
		return fail(c, err)
	}
	val, err := jsonvalue.Parse(req.Value)
	if err != nil {
		return fail(c, err)
	}
	suffix, ok := val.AsString()
	if !ok {
		return c.JSON(http.StatusBadRequest, errorBody{Error: "value must be a JSON string"})
	}
	lens, err := s.store.StrAppend(c.Request().Context(), c.Param("key"), req.path(), suffix)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, lengthsBody(lens))
}

func (s *Server) handleArrAppend(c echo.Context) error {
	req, err := bindMutation(c)
	if err != nil {
		return fail(c, err)
	}
	vals, err := parseValues(req.Values)
	if err != nil {
		return fail(c, err)
	}
	lens, err := s.store.ArrAppend(c.Request().Context(), c.Param("key"), req.path(), vals...)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, lengthsBody(lens))
}

func (s *Server) handleArrInsert(c echo.Context) error {
	req, err := bindMutation(c)
	if err != nil {
		return fail(c, err)
	}
	vals, err := parseValues(req.Values)
	if err != nil {
		return fail(c, err)
	}
	lens, err := s.store.ArrInsert(c.Request().Context(), c.Param("key"), req.path(), req.Index, vals...)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, lengthsBody(lens))
}

func (s *Server) handleArrPop(c echo.Context) error {
	req, err := bindMutation(c)
	if err != nil {
		return fail(c, err)
	}
	results, err := s.store.ArrPop(c.Request().Context(), c.Param("key"), req.path(), req.Index)
	if err != nil {
		return fail(c, err)
	}
	return valuesReply(c, results)
}

func (s *Server) handleArrTrim(c echo.Context) error {
	req, err := bindMutation(c)
	if err != nil {
		return fail(c, err)
	}
	lens, err := s.store.ArrTrim(c.Request().Context(), c.Param("key"), req.path(), req.Start, req.Stop)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, lengthsBody(lens))
}

func (s *Server) handleArrIndex(c echo.Context) error {
	req, err := bindMutation(c)
	if err != nil {
		return fail(c, err)
	}
	needle, err := jsonvalue.Parse(req.Value)
	if err != nil {
		return fail(c, err)
	}
	positions, err := s.store.ArrIndex(c.Request().Context(), c.Param("key"), req.path(), needle, req.Start, req.Stop)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string][]int{"positions": positions})
}

func (s *Server) handleClear(c echo.Context) error {
	req, err := bindMutation(c)
	if err != nil {
		return fail(c, err)
	}
	n, err := s.store.Clear(c.Request().Context(), c.Param("key"), req.path())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, map[string]int{"cleared": n})
}

func parseValues(raws []json.RawMessage) ([]*jsonvalue.Value, error) {
	vals := make([]*jsonvalue.Value, len(raws))
	for i, raw := range raws {
		v, err := jsonvalue.Parse(raw)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	return vals, nil
}

// valuesReply serializes per-match results, with null standing in for
// matches the operation did not apply to.
func valuesReply(c echo.Context, results []*jsonvalue.Value) error {
	out := []byte(`{"results":[`)
	for i, r := range results {
		if i > 0 {
			out = append(out, ',')
		}
		if r == nil {
			out = append(out, "null"...)
			continue
		}
		out = r.AppendJSON(out)
	}
	out = append(out, ']', '}')
	return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, out)
}

// lengthsBody maps the -1 "not applicable" sentinel to null.
func lengthsBody(lens []int) map[string][]any {
	out := make([]any, len(lens))
	for i, n := range lens {
		if n < 0 {
			out[i] = nil
		} else {
			out[i] = n
		}
	}
	return map[string][]any{"lengths": out}
}

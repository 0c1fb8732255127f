package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"pokiface/api/internal/upload"
	"pokiface/api/internal/util"
)

// goAnalyze downloads the file and hands it to the chat's controller off the update loop.
func (r *Router) goAnalyze(ctx context.Context, cid int64, fileID, name, declaredMIME string) {
	s := r.session(cid)
	r.goRun(func() {
		data, err := r.download(ctx, fileID)
		if err != nil {
			r.log().Warn("download photo", zap.Int64("chat_id", cid), zap.Error(err))
			r.send(cid, "Could not download the photo, please try again.")
			return
		}
		f := upload.FromBytes(name, declaredMIME, data)
		if err := s.ctrl.Upload(ctx, f); err != nil {
			r.log().Debug("upload not analyzed", zap.Int64("chat_id", cid), zap.Error(err))
		}
	})
}

func (r *Router) download(ctx context.Context, fileID string) ([]byte, error) {
	url, err := r.Bot.GetFileDirectURL(fileID)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	hc := r.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		// the URL embeds the bot token
		return nil, errors.New("download failed")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, util.Truncate(string(b), 200))
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, upload.MaxSize+1))
	if err != nil {
		return nil, fmt.Errorf("read photo: %w", err)
	}
	return data, nil
}

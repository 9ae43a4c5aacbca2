package mwclient

import (
	"context"
	"encoding/json"
	"fmt"

	"cgt.name/pkg/go-mwclient/v2/params"
)

// Edit takes a params.Values containing parameters for an edit action and
// attempts to perform the edit. Edit will return nil if no errors are detected.
// The editcfg argument should contain parameters from:
//
//	https://www.mediawiki.org/wiki/API:Edit#Parameters
//
// Edit will set the 'action' and 'token' parameters automatically, but if the token
// field in editcfg is non-empty, Edit will not override it.
// Edit does not check editcfg for sanity.
// editcfg example:
//
//	params.Values{
//		"pageid":   "709377",
//		"text":     "Complete new text for page",
//		"summary":  "Take that, page!",
//		"notminor": "",
//	}
func (w *Client) Edit(editcfg params.Values) error {
	return w.EditContext(context.Background(), editcfg)
}

// EditContext is Edit with a context.
func (w *Client) EditContext(ctx context.Context, editcfg params.Values) error {
	p := editcfg.Clone()
	// If edit token not set, obtain one from API or cache
	if p.Get("token") == "" {
		csrfToken, err := w.GetTokenContext(ctx, CSRFToken)
		if err != nil {
			return fmt.Errorf("unable to obtain csrf token: %w", err)
		}
		p.Set("token", csrfToken)
	}
	p.Set("action", "edit")

	resp, err := w.PostContext(ctx, p)
	if err != nil {
		return err
	}

	editResult, err := resp.GetString("edit", "result")
	if err != nil {
		return fmt.Errorf("unable to assert 'result' field to type string")
	}

	if editResult != "Success" {
		if captcha, err := resp.GetValue("edit", "captcha"); err == nil {
			captchaBytes, err := captcha.Marshal()
			if err != nil {
				return fmt.Errorf("error occured while creating error message: %w", err)
			}
			var captchaerr CaptchaError
			if err := json.Unmarshal(captchaBytes, &captchaerr); err != nil {
				return fmt.Errorf("error occured while creating error message: %w", err)
			}
			return captchaerr
		}

		edit, _ := resp.GetObject("edit")
		return fmt.Errorf("unrecognized response: %v", edit)
	}

	return nil
}

package api

import (
	"net/http"

	"github.com/absmach/flclient/client"
	"github.com/absmach/flclient/pkg/api"
	"github.com/absmach/flclient/pkg/fl"
	"github.com/absmach/flclient/pkg/layer"
)

var (
	_ api.Response = (*parametersRes)(nil)
	_ api.Response = (*updateParametersRes)(nil)
	_ api.Response = (*fitRes)(nil)
	_ api.Response = (*evaluateRes)(nil)
	_ api.Response = (*layersRes)(nil)
	_ api.Response = (*roundsRes)(nil)
	_ api.Response = (*roundRes)(nil)
)

type parametersRes struct {
	Parameters client.FlatParameterSet `json:"parameters"`
}

func (res parametersRes) Code() int {
	return http.StatusOK
}

func (res parametersRes) Headers() map[string]string {
	return map[string]string{}
}

func (res parametersRes) Empty() bool {
	return false
}

type updateParametersRes struct{}

func (res updateParametersRes) Code() int {
	return http.StatusNoContent
}

func (res updateParametersRes) Headers() map[string]string {
	return map[string]string{}
}

func (res updateParametersRes) Empty() bool {
	return true
}

type fitRes struct {
	RoundID string `json:"round_id,omitempty"`
	Status  string `json:"status"`
}

func (res fitRes) Code() int {
	return http.StatusOK
}

func (res fitRes) Headers() map[string]string {
	return map[string]string{}
}

func (res fitRes) Empty() bool {
	return false
}

type evaluateRes struct {
	client.EvalResult
	RoundID string `json:"round_id,omitempty"`
}

func (res evaluateRes) Code() int {
	return http.StatusOK
}

func (res evaluateRes) Headers() map[string]string {
	return map[string]string{}
}

func (res evaluateRes) Empty() bool {
	return false
}

type layersRes struct {
	Layers []layer.Descriptor `json:"layers"`
}

func (res layersRes) Code() int {
	return http.StatusOK
}

func (res layersRes) Headers() map[string]string {
	return map[string]string{}
}

func (res layersRes) Empty() bool {
	return false
}

type roundsRes struct {
	Rounds []fl.RoundRecord `json:"rounds"`
}

func (res roundsRes) Code() int {
	return http.StatusOK
}

func (res roundsRes) Headers() map[string]string {
	return map[string]string{}
}

func (res roundsRes) Empty() bool {
	return false
}

type roundRes struct {
	fl.RoundRecord
}

func (res roundRes) Code() int {
	return http.StatusOK
}

func (res roundRes) Headers() map[string]string {
	return map[string]string{}
}

func (res roundRes) Empty() bool {
	return false
}

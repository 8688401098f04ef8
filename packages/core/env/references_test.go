package env

import (
	"reflect"
	"testing"

	"github.com/abdul-hamid-achik/hitchain/packages/core/suite"
)

func referenceSuite() *suite.File {
	return &suite.File{
		Env: map[string]string{"clientId": "web"},
		Tests: []*suite.TestCase{
			{
				Index:    0,
				Name:     "Login",
				Positive: true,
				Request:  &suite.RequestSpec{Method: "POST", Path: "/v1/login", Body: map[string]any{"user": "${user}"}},
				Response: &suite.Expectation{Status: 200},
				SetEnv:   []suite.ExtractionRule{{ResponseKey: "token", EnvKey: "authToken"}},
			},
			{
				Index:    1,
				Name:     "Get user",
				Positive: true,
				Request:  &suite.RequestSpec{Method: "GET", Path: "/v1/users/${userId}", WithToken: true},
				Response: &suite.Expectation{Status: 200},
			},
			{
				Index:    2,
				Name:     "Rejected login",
				Positive: false,
				Request:  &suite.RequestSpec{Method: "POST", Path: "/v1/login", Body: map[string]any{"id": "x-${userId}"}},
				Response: &suite.Expectation{Status: 401},
				SetEnv:   []suite.ExtractionRule{{ResponseKey: "id", EnvKey: "userId"}},
			},
			{
				Index:    3,
				Name:     "Delete user",
				Positive: true,
				Request:  &suite.RequestSpec{Method: "DELETE", Path: "/v1/users/${userId}", Body: map[string]any{"ignored": "${nothing}"}},
				Response: &suite.Expectation{Status: 204},
			},
		},
	}
}

func TestUnsetReferences(t *testing.T) {
	got := UnsetReferences(referenceSuite())
	want := []Reference{
		{Index: 0, Name: "Login", Key: "user", Where: "body"},
		{Index: 1, Name: "Get user", Key: "userId", Where: "path"},
		{Index: 3, Name: "Delete user", Key: "userId", Where: "path"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("UnsetReferences() = %+v, want %+v", got, want)
	}
}

func TestUnsetReferencesSeeded(t *testing.T) {
	got := UnsetReferences(referenceSuite(), "user", "userId")
	if len(got) != 0 {
		t.Errorf("UnsetReferences() = %+v, want none", got)
	}
}

func TestUnsetReferencesTokenAndClientID(t *testing.T) {
	file := &suite.File{
		Env: map[string]string{},
		Tests: []*suite.TestCase{{
			Index:    0,
			Name:     "Me",
			Request:  &suite.RequestSpec{Method: "GET", Path: "/v1/me", WithToken: true},
			Response: &suite.Expectation{Status: 200},
		}},
	}

	got := UnsetReferences(file)
	want := []Reference{
		{Index: 0, Name: "Me", Key: ClientIDKey, Where: "header"},
		{Index: 0, Name: "Me", Key: AuthTokenKey, Where: "header"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("UnsetReferences() = %+v, want %+v", got, want)
	}
}

func TestUnsetReferencesRepeatedKeyReportedOnce(t *testing.T) {
	file := &suite.File{
		Env: map[string]string{"clientId": "web"},
		Tests: []*suite.TestCase{{
			Index:    0,
			Name:     "Friends",
			Request:  &suite.RequestSpec{Method: "GET", Path: "/u/${id}/f/${id}"},
			Response: &suite.Expectation{Status: 200},
		}},
	}

	if got := UnsetReferences(file); len(got) != 1 {
		t.Errorf("UnsetReferences() = %+v, want one reference", got)
	}
}

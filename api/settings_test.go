package api_test

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"settings-portal/api"
	"settings-portal/eeprom"
	"settings-portal/feed"
	"settings-portal/service"
	"settings-portal/settings"
)

// newTestStore creates a loaded store over an in-memory eeprom.
func newTestStore(t *testing.T) *settings.Store {
	t.Helper()
	cat := settings.DefaultCatalog(nil)
	store, err := settings.NewStore(eeprom.NewMemory(cat.RegionSize()), cat)
	require.NoError(t, err)
	require.NoError(t, store.Load())
	return store
}

func newTestServer(t *testing.T, opts api.Options) (*httptest.Server, *settings.Store) {
	t.Helper()
	store := newTestStore(t)
	hub := feed.NewHub()
	api.PublishChanges(store, hub)
	srv := httptest.NewServer(api.RegisterRoutes(store, hub, opts))
	t.Cleanup(srv.Close)
	return srv, store
}

func TestFormListsEverySetting(t *testing.T) {
	srv, store := newTestServer(t, api.Options{})

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	body, _ := io.ReadAll(resp.Body)
	page := string(body)

	assert.Equal(t, 1, strings.Count(page, "<form"))
	assert.Equal(t, 1, strings.Count(page, `type="submit"`))
	assert.Contains(t, page, `action="/save"`)
	for _, label := range settings.Labels {
		assert.Contains(t, page, `name="`+label+`"`)
		assert.Contains(t, page, `value="`+store.Get(label)+`"`)
	}
	// Labels appear in sorted order.
	assert.Less(t, strings.Index(page, `name="INVERTER_WEBACCESS_PWD"`), strings.Index(page, `name="WIFI_HOME_KEY"`))
}

func TestFormEscapesValues(t *testing.T) {
	srv, store := newTestServer(t, api.Options{})
	require.NoError(t, store.Set(settings.MQTTBrokerMainTopic, `'><script>x</script>`))

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.NotContains(t, string(body), "<script>")
}

func TestSavePartialSubmission(t *testing.T) {
	srv, store := newTestServer(t, api.Options{})
	userBefore := store.Get(settings.MQTTBrokerUser)
	pwdBefore := store.Get(settings.MQTTBrokerPwd)

	form := url.Values{
		settings.MQTTBrokerHost: {"broker.lan"},
		settings.MQTTBrokerPwd:  {""},
		"NOT_A_LABEL":           {"ignored"},
	}
	resp, err := http.PostForm(srv.URL+"/save", form)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/plain")
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "Settings saved.", string(body))

	assert.Equal(t, "broker.lan", store.Get(settings.MQTTBrokerHost))
	stored, err := store.Read(settings.MQTTBrokerHost)
	require.NoError(t, err)
	assert.Equal(t, "broker.lan", stored)

	assert.Equal(t, userBefore, store.Get(settings.MQTTBrokerUser))
	assert.Equal(t, pwdBefore, store.Get(settings.MQTTBrokerPwd))
	assert.Equal(t, "", store.Get("NOT_A_LABEL"))
}

func TestSaveRateLimited(t *testing.T) {
	srv, store := newTestServer(t, api.Options{SaveLimiter: rate.NewLimiter(rate.Every(1<<62), 1)})

	first, err := http.PostForm(srv.URL+"/save", url.Values{settings.MQTTBrokerPort: {"1884"}})
	require.NoError(t, err)
	first.Body.Close()
	assert.Equal(t, http.StatusOK, first.StatusCode)

	second, err := http.PostForm(srv.URL+"/save", url.Values{settings.MQTTBrokerPort: {"1885"}})
	require.NoError(t, err)
	second.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, second.StatusCode)
	assert.Equal(t, "1884", store.Get(settings.MQTTBrokerPort))
}

func TestListSettingsJSON(t *testing.T) {
	srv, store := newTestServer(t, api.Options{})

	resp, err := http.Get(srv.URL + "/api/settings")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")

	var m map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&m))
	assert.Len(t, m, len(settings.Labels))
	assert.Equal(t, store.Get(settings.MQTTBrokerPort), m[settings.MQTTBrokerPort])
}

func TestGetOnSaveNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t, api.Options{})
	resp, err := http.Get(srv.URL + "/save")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestGatedRoutesWaitForRound(t *testing.T) {
	gate := service.NewGate(4)
	srv, _ := newTestServer(t, api.Options{Gate: gate})

	type result struct {
		code int
		err  error
	}
	out := make(chan result, 1)
	go func() {
		resp, err := http.Get(srv.URL + "/")
		if err != nil {
			out <- result{err: err}
			return
		}
		resp.Body.Close()
		out <- result{code: resp.StatusCode}
	}()

	require.Eventually(t, func() bool { return gate.Pending() == 1 }, testTimeout, pollInterval)
	assert.Equal(t, 1, gate.ServeRound())

	res := <-out
	require.NoError(t, res.err)
	assert.Equal(t, http.StatusOK, res.code)
}

type saveResult struct {
	code int
	err  error
}

func postSave(target string, form url.Values, out chan<- saveResult) {
	resp, err := http.PostForm(target, form)
	if err != nil {
		out <- saveResult{err: err}
		return
	}
	resp.Body.Close()
	out <- saveResult{code: resp.StatusCode}
}

func TestManySavesInOneRound(t *testing.T) {
	gate := service.NewGate(32)
	srv, store := newTestServer(t, api.Options{Gate: gate})

	const saves = 8
	out := make(chan saveResult, saves)
	for i := 0; i < saves; i++ {
		go postSave(srv.URL+"/save", url.Values{settings.MQTTBrokerMainTopic: {fmt.Sprintf("topic-%d", i)}}, out)
	}
	require.Eventually(t, func() bool { return gate.Pending() == saves }, testTimeout, pollInterval)
	assert.Equal(t, saves, gate.ServeRound())

	for i := 0; i < saves; i++ {
		res := <-out
		require.NoError(t, res.err)
		assert.Equal(t, http.StatusOK, res.code)
	}
	assert.True(t, strings.HasPrefix(store.Get(settings.MQTTBrokerMainTopic), "topic-"))
}

func TestSaveLimiterChargesOnArrival(t *testing.T) {
	gate := service.NewGate(32)
	srv, store := newTestServer(t, api.Options{
		Gate:        gate,
		SaveLimiter: rate.NewLimiter(rate.Every(1<<62), 2),
	})

	out := make(chan saveResult, 4)
	go postSave(srv.URL+"/save", url.Values{settings.MQTTBrokerHost: {"a.lan"}}, out)
	go postSave(srv.URL+"/save", url.Values{settings.MQTTBrokerUser: {"device"}}, out)
	require.Eventually(t, func() bool { return gate.Pending() == 2 }, testTimeout, pollInterval)

	// Over the limit: refused before it is parked.
	resp, err := http.PostForm(srv.URL+"/save", url.Values{settings.MQTTBrokerMainTopic: {"solar"}})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, 2, gate.Pending())

	// Resubmitting stored values costs nothing.
	go postSave(srv.URL+"/save", url.Values{settings.MQTTBrokerPort: {store.Get(settings.MQTTBrokerPort)}}, out)
	require.Eventually(t, func() bool { return gate.Pending() == 3 }, testTimeout, pollInterval)

	assert.Equal(t, 3, gate.ServeRound())
	for i := 0; i < 3; i++ {
		res := <-out
		require.NoError(t, res.err)
		assert.Equal(t, http.StatusOK, res.code)
	}
	assert.Equal(t, "a.lan", store.Get(settings.MQTTBrokerHost))
	assert.Equal(t, "device", store.Get(settings.MQTTBrokerUser))
	assert.NotEqual(t, "solar", store.Get(settings.MQTTBrokerMainTopic))
}

func TestSaveReadsQueryFields(t *testing.T) {
	srv, store := newTestServer(t, api.Options{})

	resp, err := http.PostForm(srv.URL+"/save?"+settings.MQTTBrokerPort+"=1999", url.Values{})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "1999", store.Get(settings.MQTTBrokerPort))
}

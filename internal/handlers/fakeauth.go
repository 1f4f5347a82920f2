package handlers

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
)

// Static credentials of the sample account linking flow. The linked token
// must match the fixture user seeded at startup.
const (
	fakeAuthCode     = "xxxxxx"
	fakeAccessToken  = "123access"
	fakeRefreshToken = "123refresh"
	tokenLifetimeSec = 86400
)

const loginForm = `<html>
<body>
<form action="/login" method="post">
<input type="hidden" name="responseurl" value="%s" />
<button type="submit" style="font-size:14pt">Link this service</button>
</form>
</body>
</html>`

// @Summary      Account linking consent page
// @Tags         oauth
// @Produce      html
// @Success      200  {string}  string
// @Router       /login [get]
func (h *Handler) loginPage(c *gin.Context) {
	responseURL := c.Query("responseurl")
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.String(http.StatusOK, fmt.Sprintf(loginForm, responseURL))
}

// @Summary      Complete account linking
// @Tags         oauth
// @Success      302
// @Failure      400  {object}  map[string]string
// @Router       /login [post]
func (h *Handler) loginSubmit(c *gin.Context) {
	responseURL, err := url.QueryUnescape(c.PostForm("responseurl"))
	if err != nil || responseURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing responseurl"})
		return
	}
	c.Redirect(http.StatusFound, responseURL)
}

// @Summary      Fake OAuth authorization endpoint
// @Description  Redirects through the consent page to redirect_uri with a canned code
// @Tags         oauth
// @Success      302
// @Router       /fakeauth [get]
func (h *Handler) fakeAuth(c *gin.Context) {
	redirectURI, err := url.QueryUnescape(c.Query("redirect_uri"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad redirect_uri"})
		return
	}
	responseURL := fmt.Sprintf("%s?code=%s&state=%s", redirectURI, fakeAuthCode, c.Query("state"))
	c.Redirect(http.StatusFound, "/login?responseurl="+url.QueryEscape(responseURL))
}

// @Summary      Fake OAuth token endpoint
// @Description  Always issues the static sample tokens
// @Tags         oauth
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /faketoken [post]
func (h *Handler) fakeToken(c *gin.Context) {
	grantType := c.PostForm("grant_type")
	if grantType == "" {
		grantType = c.Query("grant_type")
	}

	token := gin.H{
		"token_type":   "bearer",
		"access_token": fakeAccessToken,
		"expires_in":   tokenLifetimeSec,
	}
	if grantType == "authorization_code" {
		token["refresh_token"] = fakeRefreshToken
	}
	c.JSON(http.StatusOK, token)
}

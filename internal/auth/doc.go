// Package auth verifies the access tokens that guard the occupancy API.
//
// Tokens are HS256 JWTs issued by the Gray Logic core and share its role
// model (panel → user → admin → owner). This service never stores users
// or passwords; it checks the signature and expiry, then maps the role
// onto a static set of occupancy permissions:
//
//	claims, err := auth.ParseToken(bearer, cfg.Security.JWT.Secret)
//	if err != nil || !auth.HasPermission(claims.Role, auth.PermOccupancyCommand) {
//	    // 401 / 403
//	}
package auth

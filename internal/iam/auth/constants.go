// Copyright (c) 2026 Veyra. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

// # Authentication Constraints

const (
	// RefreshTokenLength is the byte length of the random opaque token.
	RefreshTokenLength = 32

	// SellerTenantPrefix names tenants created by seller self-registration.
	SellerTenantPrefix = "Seller: "
)

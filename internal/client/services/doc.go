// Package services contains the application services of the giftvault client:
// role resolution, vendor onboarding, gift card issuance and transfer, and
// vendor token minting.
//
// Every service reads the connected identity per call from the shared
// identity.Session and submits writes through the txlife.Manager, so at most
// one write per operation key is ever in flight. Values that may reflect an
// unconfirmed write are returned as models.Tagged.
package services

package oracle

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// The two oracle generations share the connector-routing idea but not the
// call signature: V2 takes the source count and a flat route, V3 adds a
// liquidity threshold filter. Both return one rate per source token.

const oracleV2ABIJSON = `[
  {"inputs": [{"internalType": "uint8", "name": "src_len", "type": "uint8"}, {"internalType": "address[]", "name": "connectors", "type": "address[]"}], "name": "getManyRatesWithConnectors", "outputs": [{"internalType": "uint256[]", "name": "rates", "type": "uint256[]"}], "stateMutability": "view", "type": "function"}
]`

const oracleV3ABIJSON = `[
  {"inputs": [{"internalType": "uint8", "name": "src_len", "type": "uint8"}, {"internalType": "address[]", "name": "connectors", "type": "address[]"}, {"internalType": "uint256", "name": "threshold_filter", "type": "uint256"}], "name": "getManyRatesWithThresholdFilter", "outputs": [{"internalType": "uint256[]", "name": "rates", "type": "uint256[]"}], "stateMutability": "view", "type": "function"}
]`

var (
	oracleABIOnce sync.Once
	oracleV2ABI   abi.ABI
	oracleV3ABI   abi.ABI
	oracleABIErr  error
)

func loadOracleABIs() (abi.ABI, abi.ABI, error) {
	oracleABIOnce.Do(func() {
		oracleV2ABI, oracleABIErr = abi.JSON(strings.NewReader(oracleV2ABIJSON))
		if oracleABIErr != nil {
			return
		}
		oracleV3ABI, oracleABIErr = abi.JSON(strings.NewReader(oracleV3ABIJSON))
	})
	return oracleV2ABI, oracleV3ABI, oracleABIErr
}
